package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/llm"
)

// fakeGateway fails embedding for providers listed in failing.
type fakeGateway struct {
	failing  map[string]bool
	requests []llm.EmbeddingRequest
}

func (f *fakeGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.requests = append(f.requests, req)
	if f.failing[req.Provider] {
		return nil, assert.AnError
	}
	embeddings := make([][]float32, len(req.Input))
	for i := range embeddings {
		embeddings[i] = []float32{3, 4, 0, 0}
	}
	return &llm.EmbeddingResponse{Embeddings: embeddings}, nil
}

func (f *fakeGateway) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, assert.AnError
}

func (f *fakeGateway) ChatStream(_ context.Context, _ llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, assert.AnError
}

func (f *fakeGateway) Provider(_ string) (llm.Provider, error) {
	return nil, assert.AnError
}

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		EmbeddingModel:    "nomic-embed-text",
		EmbeddingFallback: "openai",
		EmbeddingDim:      4,
	}
}

func TestEmbedQuery(t *testing.T) {
	t.Run("primary success is normalized", func(t *testing.T) {
		gw := &fakeGateway{}
		s := NewService(gw, testConfig())

		vec, err := s.EmbedQuery(context.Background(), "hello")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
		assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
		require.Len(t, gw.requests, 1)
		assert.Empty(t, gw.requests[0].Provider)
	})

	t.Run("falls back to the secondary provider", func(t *testing.T) {
		gw := &fakeGateway{failing: map[string]bool{"": true}}
		s := NewService(gw, testConfig())

		vec, err := s.EmbedQuery(context.Background(), "hello")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
		require.Len(t, gw.requests, 2)
		assert.Equal(t, "openai", gw.requests[1].Provider)
	})

	t.Run("ends at the zero vector, never an error", func(t *testing.T) {
		gw := &fakeGateway{failing: map[string]bool{"": true, "openai": true}}
		s := NewService(gw, testConfig())

		vec, err := s.EmbedQuery(context.Background(), "hello")
		require.NoError(t, err)
		require.Len(t, vec, 4)
		for _, x := range vec {
			assert.Zero(t, x)
		}
	})
}

func TestEmbedDocuments(t *testing.T) {
	t.Run("errors propagate for the ingestion path", func(t *testing.T) {
		gw := &fakeGateway{failing: map[string]bool{"": true}}
		s := NewService(gw, testConfig())

		_, err := s.EmbedDocuments(context.Background(), []string{"a", "b"})
		assert.Error(t, err)
	})

	t.Run("returns one vector per text", func(t *testing.T) {
		gw := &fakeGateway{}
		s := NewService(gw, testConfig())

		vecs, err := s.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Len(t, vecs, 3)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		s := NewService(&fakeGateway{}, testConfig())
		vecs, err := s.EmbedDocuments(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vecs)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	})

	t.Run("zero vector passes through", func(t *testing.T) {
		v := Normalize([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, v)
	})
}
