package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityaverma/docuchat/internal/config"
)

type gateway struct {
	providers       map[string]Provider
	defaultProvider string
	fallback        string
	maxRetries      int
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
		fallback:        cfg.FallbackProvider,
		maxRetries:      cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, name, req)
	if err != nil && g.fallback != "" && g.fallback != name {
		slog.Warn("primary provider failed, trying fallback",
			"primary", name, "fallback", g.fallback, "error", err)
		return g.chatWithRetry(ctx, g.fallback, req)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, name string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", name, "attempt", attempt)
		}

		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", name, lastErr)
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.ChatStream(ctx, req)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, req)
}
