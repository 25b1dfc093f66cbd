package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaverma/docuchat/internal/chunk"
)

func TestRetrieverRetrieve(t *testing.T) {
	t.Run("over-fetches twice the final budget", func(t *testing.T) {
		index := &stubIndex{candidates: testCandidates(4, 0.8)}
		r := NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0, 0}}, index, testRetrievalConfig())

		_, err := r.Retrieve(context.Background(), "query")
		require.NoError(t, err)
		assert.Equal(t, 10, index.gotTopK)
	})

	t.Run("truncates to rerank budget", func(t *testing.T) {
		index := &stubIndex{candidates: testCandidates(6, 0.8)}
		r := NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0, 0}}, index, testRetrievalConfig())

		got, err := r.Retrieve(context.Background(), "query")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		r := NewRetriever(&stubEmbedder{err: assert.AnError}, &stubIndex{}, testRetrievalConfig())
		_, err := r.Retrieve(context.Background(), "query")
		assert.Error(t, err)
	})
}

func TestRerank(t *testing.T) {
	cfg := testRetrievalConfig()
	r := NewRetriever(&stubEmbedder{}, &stubIndex{}, cfg)

	t.Run("similarity dominates", func(t *testing.T) {
		low := testCandidate("low", "completely unrelated text", 0.5)
		high := testCandidate("high", "completely unrelated text", 0.95)

		got := r.rerank("query", []chunk.Candidate{low, high})
		assert.Equal(t, "high", got[0].ID)
	})

	t.Run("term overlap breaks similarity ties", func(t *testing.T) {
		miss := testCandidate("miss", "nothing in common here today", 0.8)
		hit := testCandidate("hit", "postgres replication lag explained", 0.8)

		got := r.rerank("postgres replication", []chunk.Candidate{miss, hit})
		assert.Equal(t, "hit", got[0].ID)
	})

	t.Run("earlier chunks of a document rank higher", func(t *testing.T) {
		early := testCandidate("early", "same words in both", 0.8)
		early.Metadata.ChunkIndex = 0
		early.Metadata.TotalChunks = 10
		late := testCandidate("late", "same words in both", 0.8)
		late.Metadata.ChunkIndex = 9
		late.Metadata.TotalChunks = 10

		got := r.rerank("query", []chunk.Candidate{late, early})
		assert.Equal(t, "early", got[0].ID)
	})

	t.Run("single chunk documents get the full position bonus", func(t *testing.T) {
		assert.InDelta(t, 1.0, positionBonus(chunk.Metadata{TotalChunks: 1}), 1e-12)
		assert.InDelta(t, 1.0, positionBonus(chunk.Metadata{}), 1e-12)
	})

	t.Run("substantial content beats thin content", func(t *testing.T) {
		thin := testCandidate("thin", "ok", 0.8)
		fat := testCandidate("fat", strings.Repeat("detail ", 80), 0.8)

		got := r.rerank("query", []chunk.Candidate{thin, fat})
		assert.Equal(t, "fat", got[0].ID)
	})

	t.Run("equal scores keep incoming order", func(t *testing.T) {
		a := testCandidate("a", "same text", 0.8)
		b := testCandidate("b", "same text", 0.8)

		got := r.rerank("query", []chunk.Candidate{a, b})
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})
}

func TestTermOverlap(t *testing.T) {
	assert.InDelta(t, 0.5, termOverlap([]string{"postgres", "redis"}, "Postgres tuning guide"), 1e-12)
	assert.Zero(t, termOverlap(nil, "anything"))
}

func TestConfidenceRetriever(t *testing.T) {
	t.Run("metrics reflect the pre-rerank superset", func(t *testing.T) {
		candidates := testCandidates(6, 0.6)
		candidates[5].SimilarityScore = 0.9
		index := &stubIndex{candidates: candidates}

		cr := NewConfidenceRetriever(
			NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0, 0}}, index, testRetrievalConfig()),
			NewScorer(nil),
		)

		ret := cr.RetrieveWithConfidence(context.Background(), "query")
		assert.Len(t, ret.Documents, 3)
		// Mean over all six fetched candidates, not the surviving three.
		assert.InDelta(t, (0.6*5+0.9)/6, ret.Metrics.MeanSimilarity, 1e-12)
	})

	t.Run("retrieval failure degrades to a gated refusal", func(t *testing.T) {
		cr := NewConfidenceRetriever(
			NewRetriever(&stubEmbedder{vector: []float32{1, 0, 0, 0}}, &stubIndex{err: assert.AnError}, testRetrievalConfig()),
			NewScorer(nil),
		)

		ret := cr.RetrieveWithConfidence(context.Background(), "query")
		assert.Empty(t, ret.Documents)
		assert.False(t, ret.ShouldProceed)
		assert.Equal(t, "Very low confidence in retrieved documents", ret.ProceedMessage)
	})
}
