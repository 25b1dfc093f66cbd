package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("short text is a single piece", func(t *testing.T) {
		pieces := Split("just a short note", DefaultOptions())
		require.Len(t, pieces, 1)
		assert.Equal(t, "just a short note", pieces[0].Content)
		assert.Equal(t, 0, pieces[0].Index)
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Empty(t, Split("", DefaultOptions()))
		assert.Empty(t, Split("   \n\n  ", DefaultOptions()))
	})

	t.Run("pieces respect the size bound", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 60; i++ {
			sb.WriteString("A sentence about something moderately interesting. ")
		}

		opts := Options{Size: 400, Overlap: 0}
		pieces := Split(sb.String(), opts)
		require.Greater(t, len(pieces), 1)
		for _, p := range pieces {
			assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), opts.Size)
		}
	})

	t.Run("indices are sequential", func(t *testing.T) {
		text := strings.Repeat("Paragraph text here.\n\n", 50)
		pieces := Split(text, Options{Size: 100})
		for i, p := range pieces {
			assert.Equal(t, i, p.Index)
		}
	})

	t.Run("overlap carries context between pieces", func(t *testing.T) {
		text := strings.Repeat("alpha beta gamma delta. ", 40)
		pieces := Split(text, Options{Size: 200, Overlap: 40})
		require.Greater(t, len(pieces), 1)

		tailWords := strings.Fields(pieces[0].Content)
		lastWord := tailWords[len(tailWords)-1]
		assert.Contains(t, pieces[1].Content, strings.TrimSuffix(lastWord, "."))
	})

	t.Run("unbroken text falls back to hard cuts", func(t *testing.T) {
		text := strings.Repeat("x", 950)
		pieces := Split(text, Options{Size: 300})
		require.Greater(t, len(pieces), 1)
		for _, p := range pieces {
			assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), 300)
		}
	})
}
