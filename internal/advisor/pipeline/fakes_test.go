package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

type page struct {
	body        string
	contentType string
}

type mapFetcher map[string]page

var _ loader.Fetcher = mapFetcher(nil)

func (f mapFetcher) Get(_ context.Context, url string) ([]byte, string, error) {
	p, ok := f[url]
	if !ok {
		return nil, "", &httpclient.StatusError{StatusCode: 404, Body: "not found"}
	}
	return []byte(p.body), p.contentType, nil
}

// paragraphSegmenter 按空行切分。
type paragraphSegmenter struct {
	calls int
	err   error
}

var _ llm.SegmentationProvider = (*paragraphSegmenter)(nil)

func (s *paragraphSegmenter) Segment(_ context.Context, text string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *paragraphSegmenter) Name() string { return "paragraph" }

var keywords = []string{"etf", "bond", "stock", "deposit"}

// keywordEmbedder 按关键词出现次数生成向量，最后一维恒为 1。
type keywordEmbedder struct {
	mu     sync.Mutex
	inputs []string
}

var _ llm.EmbeddingProvider = (*keywordEmbedder)(nil)

func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(keywords)+1)
	for i, k := range keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	v[len(keywords)] = 0.1
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.inputs = append(e.inputs, text)
	e.mu.Unlock()
	return embedText(text), nil
}

func (e *keywordEmbedder) Name() string { return "keyword" }

// scriptedChat 记录提示词，并对改写请求与回答请求分别返回固定内容。
type scriptedChat struct {
	prompts    []string
	standalone string
	answers    int
}

var _ llm.ChatProvider = (*scriptedChat)(nil)

func (c *scriptedChat) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return c.Generate(ctx, messages[len(messages)-1].Content, "")
}

func (c *scriptedChat) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	c.prompts = append(c.prompts, prompt)
	if strings.Contains(prompt, "Standalone question:") {
		return &llm.GenerateResponse{Content: c.standalone}, nil
	}
	c.answers++
	return &llm.GenerateResponse{Content: fmt.Sprintf("answer %d", c.answers)}, nil
}

func (c *scriptedChat) Name() string { return "scripted" }
