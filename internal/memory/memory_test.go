package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaverma/docuchat/internal/llm"
)

func TestBufferStore(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and reads back in order", func(t *testing.T) {
		s := NewBufferStore(10)
		require.NoError(t, s.Append(ctx, "c1",
			llm.Message{Role: "user", Content: "hi"},
			llm.Message{Role: "assistant", Content: "hello"},
		))

		msgs, err := s.History(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "hi", msgs[0].Content)
		assert.Equal(t, "hello", msgs[1].Content)
	})

	t.Run("window evicts oldest messages", func(t *testing.T) {
		s := NewBufferStore(4)
		for i := 0; i < 6; i++ {
			require.NoError(t, s.Append(ctx, "c1", llm.Message{Role: "user", Content: fmt.Sprintf("m%d", i)}))
		}

		msgs, err := s.History(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "m2", msgs[0].Content)
		assert.Equal(t, "m5", msgs[3].Content)
	})

	t.Run("conversations are isolated", func(t *testing.T) {
		s := NewBufferStore(10)
		require.NoError(t, s.Append(ctx, "a", llm.Message{Role: "user", Content: "for a"}))

		msgs, err := s.History(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("clear removes a conversation", func(t *testing.T) {
		s := NewBufferStore(10)
		require.NoError(t, s.Append(ctx, "a", llm.Message{Role: "user", Content: "x"}))
		require.NoError(t, s.Clear(ctx, "a"))

		msgs, err := s.History(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("history returns a copy", func(t *testing.T) {
		s := NewBufferStore(10)
		require.NoError(t, s.Append(ctx, "a", llm.Message{Role: "user", Content: "original"}))

		msgs, _ := s.History(ctx, "a")
		msgs[0].Content = "mutated"

		again, _ := s.History(ctx, "a")
		assert.Equal(t, "original", again[0].Content)
	})
}
