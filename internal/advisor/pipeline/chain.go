package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/advisor/biz"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	advisoropts "github.com/kart-io/sentinel-advisor/pkg/options/advisor"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

// DefaultTopK 每轮检索的段落数。
const DefaultTopK = 5

// CondenseTemplate 将追问改写为独立问题的提示模板。
const CondenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{history}}
Follow Up Input: {{question}}
Standalone question:`

// ConversationalChain 带完整对话记忆的检索问答链。
// 有历史时先把追问改写为独立问题，再检索并生成回答。
type ConversationalChain struct {
	index    store.VectorIndex
	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	topK     int
	prompt   string

	mu      sync.Mutex
	history []llm.Message
}

// NewConversationalChain 创建问答链，topK <= 0 时使用 DefaultTopK。
func NewConversationalChain(index store.VectorIndex, embedder llm.EmbeddingProvider, chat llm.ChatProvider, topK int) *ConversationalChain {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ConversationalChain{
		index:    index,
		embedder: embedder,
		chat:     chat,
		topK:     topK,
		prompt:   advisoropts.DefaultPromptTemplate,
	}
}

// Run 回答一个问题并把问答追加到记忆中。
// 同一条链上的调用串行执行。
func (c *ConversationalChain) Run(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	standalone := question
	if len(c.history) > 0 {
		resp, err := c.chat.Generate(ctx, c.condensePrompt(question), "")
		if err != nil {
			return "", errors.ErrChatFailed.WithCause(err)
		}
		if s := strings.TrimSpace(resp.Content); s != "" {
			standalone = s
		}
		logger.Debugw("question condensed", "question", question, "standalone", standalone)
	}

	vector, err := c.embedder.EmbedSingle(ctx, standalone)
	if err != nil {
		return "", errors.ErrEmbeddingFailed.WithCause(err)
	}
	results, err := c.index.Search(ctx, vector, c.topK)
	if err != nil {
		return "", errors.ErrIndexFailed.WithCause(err)
	}

	resp, err := c.chat.Generate(ctx, biz.StuffPrompt(c.prompt, standalone, results), "")
	if err != nil {
		return "", errors.ErrChatFailed.WithCause(err)
	}

	c.history = append(c.history,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
	)
	return resp.Content, nil
}

// History 返回记忆的副本。
func (c *ConversationalChain) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.history...)
}

// Reset 清空记忆。
func (c *ConversationalChain) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func (c *ConversationalChain) condensePrompt(question string) string {
	var b strings.Builder
	for _, m := range c.history {
		switch m.Role {
		case llm.RoleUser:
			b.WriteString("Human: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.NewReplacer(
		"{{history}}", strings.TrimRight(b.String(), "\n"),
		"{{question}}", question,
	).Replace(CondenseTemplate)
}
