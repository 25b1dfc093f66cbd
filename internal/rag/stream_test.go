package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFragments(t *testing.T) {
	t.Run("concatenation reproduces the input", func(t *testing.T) {
		inputs := []string{
			"plain words here",
			"line one\nline two\n\nparagraph",
			"  leading and trailing  ",
			"single",
			"",
		}
		for _, in := range inputs {
			assert.Equal(t, in, strings.Join(splitFragments(in), ""))
		}
	})

	t.Run("fragments are word granular", func(t *testing.T) {
		frags := splitFragments("alpha beta gamma")
		assert.Equal(t, []string{"alpha ", "beta ", "gamma"}, frags)
	})

	t.Run("newlines stay attached", func(t *testing.T) {
		frags := splitFragments("alpha\nbeta")
		assert.Equal(t, []string{"alpha\n", "beta"}, frags)
	})
}

func collectEvents(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestGenerateStream(t *testing.T) {
	t.Run("info, chunks, then final", func(t *testing.T) {
		model := &stubModel{answer: "Cited answer [1]."}
		g := NewSafeGenerator(model)
		ret := &RetrievalResult{
			Documents:     testCandidates(1, 0.9),
			ShouldProceed: true,
			Metrics:       ConfidenceMetrics{Overall: 0.85},
		}

		events := collectEvents(g.GenerateStream(context.Background(), "question", ret))
		require.GreaterOrEqual(t, len(events), 3)

		assert.Equal(t, EventRetrievalInfo, events[0].Type)
		require.NotNil(t, events[0].Info)

		var rebuilt strings.Builder
		for _, ev := range events[1 : len(events)-1] {
			assert.Equal(t, EventAnswerChunk, ev.Type)
			rebuilt.WriteString(ev.Content)
		}
		assert.Equal(t, "Cited answer [1].", rebuilt.String())

		last := events[len(events)-1]
		assert.Equal(t, EventFinal, last.Type)
		require.NotNil(t, last.Result)
		assert.Equal(t, "Cited answer [1].", last.Result.Answer)
		assert.Len(t, last.Result.Citations, 1)
		require.NotNil(t, last.Info)
		assert.Len(t, last.Info.Documents, 1)
	})

	t.Run("gate refusal emits a single final event", func(t *testing.T) {
		model := &stubModel{answer: "should never run"}
		g := NewSafeGenerator(model)
		ret := &RetrievalResult{
			ShouldProceed:  false,
			ProceedMessage: "Insufficient content for reliable answer",
			Metrics:        ConfidenceMetrics{Overall: 0.4},
		}

		events := collectEvents(g.GenerateStream(context.Background(), "question", ret))
		require.Len(t, events, 2)
		assert.Equal(t, EventRetrievalInfo, events[0].Type)
		assert.Equal(t, EventFinal, events[1].Type)
		require.NotNil(t, events[1].Result)
		require.NotNil(t, events[1].Info)
		assert.Empty(t, events[1].Result.Citations)
		assert.Contains(t, events[1].Result.Answer, "Insufficient content for reliable answer")
		assert.Empty(t, model.prompts)
	})

	t.Run("model failure terminates with one error event", func(t *testing.T) {
		g := NewSafeGenerator(&stubModel{err: assert.AnError})
		ret := &RetrievalResult{
			Documents:     testCandidates(1, 0.9),
			ShouldProceed: true,
			Metrics:       ConfidenceMetrics{Overall: 0.85},
		}

		events := collectEvents(g.GenerateStream(context.Background(), "question", ret))
		require.Len(t, events, 2)
		assert.Equal(t, EventRetrievalInfo, events[0].Type)
		assert.Equal(t, EventError, events[1].Type)
		assert.NotEmpty(t, events[1].Error)
	})
}

func TestBlockingModelStream(t *testing.T) {
	model := NewBlockingModel(&stubModel{answer: "one two"})

	frags, err := model.Stream(context.Background(), "prompt")
	require.NoError(t, err)

	var got []string
	for f := range frags {
		require.NoError(t, f.Err)
		got = append(got, f.Text)
	}
	assert.Equal(t, []string{"one ", "two"}, got)
}
