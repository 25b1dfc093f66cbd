package rag

import (
	"context"
	"fmt"
	"unicode"
)

// StreamEventType labels the events of one streamed generation.
type StreamEventType string

const (
	EventRetrievalInfo StreamEventType = "retrieval_info"
	EventAnswerChunk   StreamEventType = "answer_chunk"
	EventFinal         StreamEventType = "final"
	EventError         StreamEventType = "error"
)

// StreamEvent is one element of the ordered event sequence a streamed
// generation produces: exactly one retrieval_info first, then either answer
// chunks followed by a final event, or a single terminal error event. The
// final event repeats the retrieval result so a consumer can pair citations
// with the documents they point at from one frame.
type StreamEvent struct {
	Type    StreamEventType   `json:"type"`
	Content string            `json:"content,omitempty"`
	Info    *RetrievalResult  `json:"info,omitempty"`
	Result  *GenerationResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Fragment is one increment of streamed model output. A non-nil Err is
// terminal for its stream.
type Fragment struct {
	Text string
	Err  error
}

// BlockingModel adapts an invoke-only model to the streaming contract by
// replaying its complete answer as word-granularity fragments.
type BlockingModel struct {
	inner GenerativeModel
}

func NewBlockingModel(inner GenerativeModel) *BlockingModel {
	return &BlockingModel{inner: inner}
}

func (m *BlockingModel) Invoke(ctx context.Context, prompt string) (string, error) {
	return m.inner.Invoke(ctx, prompt)
}

func (m *BlockingModel) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	out := make(chan Fragment)
	go func() {
		defer close(out)

		answer, err := m.inner.Invoke(ctx, prompt)
		if err != nil {
			out <- Fragment{Err: err}
			return
		}
		for _, frag := range splitFragments(answer) {
			select {
			case out <- Fragment{Text: frag}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// splitFragments cuts text into word-sized fragments whose concatenation
// reproduces the input exactly, whitespace and newlines included. Each
// fragment is one word plus its surrounding whitespace; the cut falls just
// before each word after the first.
func splitFragments(text string) []string {
	var fragments []string
	start := 0
	inSpace := true

	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if inSpace && !isSpace && i > start {
			fragments = append(fragments, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		fragments = append(fragments, text[start:])
	}
	return fragments
}

// GenerateStream runs the gated generation as an event sequence. Retrieval
// info goes out first; a gate refusal ends the stream with a final event and
// no chunks; any model failure ends it with a single error event.
func (g *SafeGenerator) GenerateStream(ctx context.Context, question string, ret *RetrievalResult) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		events <- StreamEvent{Type: EventRetrievalInfo, Info: ret}

		if !ret.ShouldProceed {
			result := gateRefusal(ret)
			events <- StreamEvent{Type: EventFinal, Result: &result, Info: ret}
			return
		}

		prompt := fmt.Sprintf(groundedPrompt, FormatContext(ret.Documents), question)
		fragments, err := g.inner.model.Stream(ctx, prompt)
		if err != nil {
			events <- StreamEvent{Type: EventError, Error: err.Error()}
			return
		}

		var answer []byte
		for frag := range fragments {
			if frag.Err != nil {
				events <- StreamEvent{Type: EventError, Error: frag.Err.Error()}
				return
			}
			answer = append(answer, frag.Text...)
			select {
			case events <- StreamEvent{Type: EventAnswerChunk, Content: frag.Text}:
			case <-ctx.Done():
				return
			}
		}

		result := grade(string(answer), ret.Documents, ret.Metrics.Overall)
		events <- StreamEvent{Type: EventFinal, Result: &result, Info: ret}
	}()

	return events
}
