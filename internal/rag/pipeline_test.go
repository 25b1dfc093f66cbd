package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/memory"
)

func newTestPipeline(t *testing.T, index *stubIndex, model *stubModel, history memory.Store) Pipeline {
	t.Helper()
	embedder := &stubEmbedder{vector: []float32{1, 0, 0, 0}}
	retriever := NewConfidenceRetriever(
		NewRetriever(embedder, index, testRetrievalConfig()),
		NewScorer(nil),
	)
	return NewPipeline(retriever, NewSafeGenerator(model), NewEngine(embedder), history)
}

func confidentCandidates() []chunk.Candidate {
	c := testCandidates(3, 0.9)
	for i := range c {
		c[i].Content = strings.Repeat("solid reference material ", 12)
	}
	return c
}

func TestPipelineChat(t *testing.T) {
	t.Run("answers and records the conversation", func(t *testing.T) {
		history := memory.NewBufferStore(10)
		index := &stubIndex{candidates: confidentCandidates()}
		p := newTestPipeline(t, index, &stubModel{answer: "Grounded [1]."}, history)

		resp, err := p.Chat(context.Background(), ChatRequest{ConversationID: "conv-1", Question: "what now?"})
		require.NoError(t, err)
		assert.True(t, resp.ShouldProceed)
		assert.Equal(t, "Grounded [1].", resp.Answer)

		msgs, err := history.History(context.Background(), "conv-1")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "user", msgs[0].Role)
		assert.Equal(t, "what now?", msgs[0].Content)
		assert.Equal(t, "assistant", msgs[1].Role)
	})

	t.Run("no conversation id skips history", func(t *testing.T) {
		history := memory.NewBufferStore(10)
		index := &stubIndex{candidates: confidentCandidates()}
		p := newTestPipeline(t, index, &stubModel{answer: "ok [1]"}, history)

		_, err := p.Chat(context.Background(), ChatRequest{Question: "anything"})
		require.NoError(t, err)

		msgs, _ := history.History(context.Background(), "")
		assert.Empty(t, msgs)
	})

	t.Run("empty index refuses through the gate", func(t *testing.T) {
		p := newTestPipeline(t, &stubIndex{}, &stubModel{answer: "never"}, nil)

		resp, err := p.Chat(context.Background(), ChatRequest{Question: "anything"})
		require.NoError(t, err)
		assert.False(t, resp.ShouldProceed)
		assert.Equal(t, SafetyFailed, resp.SafetyCheck)
	})
}

func TestPipelineChatStream(t *testing.T) {
	history := memory.NewBufferStore(10)
	index := &stubIndex{candidates: confidentCandidates()}
	p := newTestPipeline(t, index, &stubModel{answer: "Streamed [1]."}, history)

	events := collectEvents(p.ChatStream(context.Background(), ChatRequest{ConversationID: "conv-2", Question: "q"}))
	require.NotEmpty(t, events)
	assert.Equal(t, EventRetrievalInfo, events[0].Type)
	assert.Equal(t, EventFinal, events[len(events)-1].Type)

	msgs, err := history.History(context.Background(), "conv-2")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestPipelineSearch(t *testing.T) {
	index := &stubIndex{candidates: confidentCandidates()}
	p := newTestPipeline(t, index, &stubModel{}, nil)

	t.Run("plain search returns reranked candidates", func(t *testing.T) {
		resp, err := p.Search(context.Background(), SearchRequest{Query: "reference material"})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 3)
		assert.Nil(t, resp.Metrics)
	})

	t.Run("analyze attaches confidence metrics", func(t *testing.T) {
		resp, err := p.Search(context.Background(), SearchRequest{Query: "reference material", Analyze: true})
		require.NoError(t, err)
		require.NotNil(t, resp.Metrics)
		assert.InDelta(t, 0.9, resp.Metrics.MaxSimilarity, 1e-12)
	})

	t.Run("classifies the query", func(t *testing.T) {
		resp, err := p.Search(context.Background(), SearchRequest{Query: "PROJ-42"})
		require.NoError(t, err)
		assert.Equal(t, QueryExactMatch, resp.Profile.Type)
	})

	t.Run("hybrid search fuses scores over the fetched pool", func(t *testing.T) {
		resp, err := p.Search(context.Background(), SearchRequest{Query: "reference material", Hybrid: true, TopK: 2})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		for _, c := range resp.Results {
			assert.Greater(t, c.RelevanceScore, 0.0)
		}
	})
}
