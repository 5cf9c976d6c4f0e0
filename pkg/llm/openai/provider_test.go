package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EmbedModel != "text-embedding-3-large" {
		t.Errorf("expected EmbedModel text-embedding-3-large, got %s", cfg.EmbedModel)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("expected ChatModel gpt-4o-mini, got %s", cfg.ChatModel)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("expected Timeout 120s, got %v", cfg.Timeout)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
		wantEmbed string
		wantChat  string
	}{
		{
			name:      "valid config",
			config:    map[string]any{"api_key": testAPIKey},
			wantEmbed: "text-embedding-3-large",
			wantChat:  "gpt-4o-mini",
		},
		{
			name:      "embedding model via model key",
			config:    map[string]any{"api_key": testAPIKey, "model": "text-embedding-3-small"},
			wantEmbed: "text-embedding-3-small",
			wantChat:  "gpt-4o-mini",
		},
		{
			name:      "chat model via model key",
			config:    map[string]any{"api_key": testAPIKey, "model": "gpt-4o", "max_tokens": 256},
			wantEmbed: "text-embedding-3-large",
			wantChat:  "gpt-4o",
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			p := provider.(*Provider)
			if p.Name() != ProviderName {
				t.Errorf("expected provider name %s, got %s", ProviderName, p.Name())
			}
			if p.config.EmbedModel != tt.wantEmbed {
				t.Errorf("expected embed model %s, got %s", tt.wantEmbed, p.config.EmbedModel)
			}
			if p.config.ChatModel != tt.wantChat {
				t.Errorf("expected chat model %s, got %s", tt.wantChat, p.config.ChatModel)
			}
		})
	}
}

func TestRegistered(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"api_key": testAPIKey})
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, p.Name())
	}
}

func TestProviderEmbed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			t.Error("expected Authorization Bearer test-key")
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "text-embedding-3-large" || len(req.Input) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}

		// 故意乱序返回，验证按 index 归位。
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-large","data":[
			{"object":"embedding","index":1,"embedding":[0.4,0.5,0.6]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}
		],"usage":{"prompt_tokens":4,"total_tokens":4}}`)
	})

	embeddings, err := provider.Embed(context.Background(), []string{"text1", "text2"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[0][0] != 0.1 || embeddings[1][0] != 0.4 {
		t.Errorf("embeddings not ordered by index: %v", embeddings)
	}
}

func TestProviderEmbedEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	provider := NewProviderWithConfig(cfg)

	embeddings, err := provider.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed with empty texts failed: %v", err)
	}
	if embeddings != nil {
		t.Error("expected nil embeddings for empty input")
	}
}

func TestProviderGenerate(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"role":"system"`) {
			t.Errorf("expected system message in request: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Diversify."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`)
	})

	resp, err := provider.Generate(context.Background(), "what should I buy?", "you are an advisor")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "Diversify." {
		t.Errorf("expected 'Diversify.', got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 12 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestProviderChatStatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", http.StatusBadRequest},
		{"server error", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			})

			_, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
			var statusErr *httpclient.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, statusErr.StatusCode)
			}
		})
	}
}
