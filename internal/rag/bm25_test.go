package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25Scores(t *testing.T) {
	corpus := [][]string{
		{"the", "quick", "brown", "fox"},
		{"the", "lazy", "dog"},
		{"quick", "quick", "quick", "fox", "jumps"},
	}
	idx := newBM25Index(corpus)

	t.Run("matching documents outscore non-matching", func(t *testing.T) {
		scores := idx.Scores([]string{"quick"})
		require.Len(t, scores, 3)
		assert.Greater(t, scores[0], 0.0)
		assert.Zero(t, scores[1])
		assert.Greater(t, scores[2], 0.0)
	})

	t.Run("unknown terms score zero everywhere", func(t *testing.T) {
		scores := idx.Scores([]string{"zebra"})
		for _, s := range scores {
			assert.Zero(t, s)
		}
	})

	t.Run("term frequency saturates, not dominates", func(t *testing.T) {
		scores := idx.Scores([]string{"quick"})
		// doc 2 has quick three times vs once in doc 0, but its score is
		// bounded by the k1 saturation, not tripled.
		assert.Greater(t, scores[2], scores[0])
		assert.Less(t, scores[2], 3*scores[0])
	})

	t.Run("common terms keep a positive floor", func(t *testing.T) {
		// "the" appears in 2 of 3 documents; raw idf would be negative.
		scores := idx.Scores([]string{"the"})
		assert.Greater(t, scores[0], 0.0)
		assert.Greater(t, scores[1], 0.0)
	})
}

func TestBM25EmptyCorpus(t *testing.T) {
	idx := newBM25Index(nil)
	assert.Empty(t, idx.Scores([]string{"anything"}))
}
