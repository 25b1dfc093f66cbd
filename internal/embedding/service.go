package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/llm"
)

// Service produces unit-normalized embeddings. Query embedding degrades
// through an explicit chain (primary provider, fallback provider, zero
// vector), so a dead embedding backend turns into an empty retrieval
// instead of a failed request. Document embedding propagates errors so the
// ingestion queue can retry.
type Service struct {
	gateway  llm.Gateway
	model    string
	fallback string
	dim      int
}

func NewService(gw llm.Gateway, cfg config.RetrievalConfig) *Service {
	return &Service{
		gateway:  gw,
		model:    cfg.EmbeddingModel,
		fallback: cfg.EmbeddingFallback,
		dim:      cfg.EmbeddingDim,
	}
}

// outcome is the typed result of one layer of the query fallback chain.
type outcome struct {
	vector []float32
	source string
	err    error
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	for _, o := range s.queryChain(ctx, text) {
		if o.err == nil {
			return Normalize(o.vector), nil
		}
		slog.Warn("embedding layer failed", "source", o.source, "error", o.err)
	}
	// Last layer is the zero vector and cannot fail.
	return make([]float32, s.dim), nil
}

func (s *Service) queryChain(ctx context.Context, text string) []outcome {
	var chain []outcome

	chain = append(chain, s.tryEmbed(ctx, "", text))
	if s.fallback != "" {
		chain = append(chain, s.tryEmbed(ctx, s.fallback, text))
	}
	return chain
}

func (s *Service) tryEmbed(ctx context.Context, provider, text string) outcome {
	source := provider
	if source == "" {
		source = "primary"
	}

	resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
		Provider: provider,
		Model:    s.model,
		Input:    []string{text},
	})
	if err != nil {
		return outcome{source: source, err: err}
	}
	if len(resp.Embeddings) == 0 {
		return outcome{source: source, err: fmt.Errorf("no embedding returned")}
	}
	return outcome{vector: resp.Embeddings[0], source: source}
}

func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 32
	var all [][]float32

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: texts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		for _, v := range resp.Embeddings {
			all = append(all, Normalize(v))
		}
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(all), len(texts))
	}
	return all, nil
}

// Dim reports the configured embedding dimensionality.
func (s *Service) Dim() int { return s.dim }

// Normalize scales a vector to unit length. Zero vectors pass through
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
