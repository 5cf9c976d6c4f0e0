package biz

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
)

// keywordEmbedder 将文本映射到 [bond, stock, etf] 关键词计数向量。
type keywordEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

var _ llm.EmbeddingProvider = (*keywordEmbedder)(nil)

func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "bond")) + 0.01,
		float32(strings.Count(lower, "stock")) + 0.01,
		float32(strings.Count(lower, "etf")) + 0.01,
	}
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (e *keywordEmbedder) Name() string { return "keyword" }

type recordingChat struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

var _ llm.ChatProvider = (*recordingChat)(nil)

func (c *recordingChat) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return c.Generate(ctx, messages[len(messages)-1].Content, "")
}

func (c *recordingChat) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &llm.GenerateResponse{
		Content: c.answer,
		Usage:   &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (c *recordingChat) Name() string { return "recording" }

func (c *recordingChat) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// textPDFLoader 把临时文件内容按换页符切成页面，记录看到的路径。
type textPDFLoader struct {
	paths []string
	err   error
}

func (l *textPDFLoader) Load(_ context.Context, src loader.Source) ([]model.Document, error) {
	l.paths = append(l.paths, src.Location)
	if l.err != nil {
		return nil, l.err
	}
	data, err := os.ReadFile(src.Location)
	if err != nil {
		return nil, err
	}
	var docs []model.Document
	for _, page := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(page) != "" {
			docs = append(docs, model.NewDocument(page, src.Name))
		}
	}
	return docs, nil
}

type staticURLLoader struct {
	pages map[string]string
}

func (l *staticURLLoader) LoadAll(_ context.Context, urls []string) ([]model.Document, error) {
	var docs []model.Document
	for _, u := range urls {
		page, ok := l.pages[u]
		if !ok {
			return nil, errors.New("404 " + u)
		}
		docs = append(docs, model.NewDocument(page, u))
	}
	return docs, nil
}

type failingBuilder struct{}

func (failingBuilder) Name() string { return "failing" }

func (failingBuilder) Build(context.Context, uint64, []*model.Chunk) (store.VectorIndex, error) {
	return nil, errors.New("disk full")
}

func upload(name, content string) PDFUpload {
	return PDFUpload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
