package memory

import (
	"context"
	"sync"

	"github.com/adityaverma/docuchat/internal/llm"
)

// Store keeps per-conversation message history with a sliding window.
type Store interface {
	Append(ctx context.Context, conversationID string, messages ...llm.Message) error
	History(ctx context.Context, conversationID string) ([]llm.Message, error)
	Clear(ctx context.Context, conversationID string) error
}

// BufferStore is an in-memory Store keyed by conversation. The window keeps
// the most recent messages and evicts the oldest.
type BufferStore struct {
	mu     sync.RWMutex
	conv   map[string][]llm.Message
	window int
}

func NewBufferStore(window int) *BufferStore {
	if window <= 0 {
		window = 20
	}
	return &BufferStore{
		conv:   make(map[string][]llm.Message),
		window: window,
	}
}

func (s *BufferStore) Append(_ context.Context, conversationID string, messages ...llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.conv[conversationID], messages...)
	if len(msgs) > s.window {
		msgs = msgs[len(msgs)-s.window:]
	}
	s.conv[conversationID] = msgs
	return nil
}

func (s *BufferStore) History(_ context.Context, conversationID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conv[conversationID]
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *BufferStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conv, conversationID)
	return nil
}
