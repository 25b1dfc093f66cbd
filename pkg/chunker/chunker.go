package chunker

import (
	"strings"
	"unicode/utf8"
)

// Options controls how source text is cut into retrievable pieces.
type Options struct {
	Size    int // target piece size in runes
	Overlap int // trailing runes repeated at the start of the next piece
}

func DefaultOptions() Options {
	return Options{Size: 1000, Overlap: 200}
}

// Piece is one chunk of source text with its position in the sequence.
type Piece struct {
	Content string
	Index   int
}

// Separators tried in order when a span is too large. Paragraphs first,
// then lines, sentences and finally bare words.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into pieces of at most opts.Size runes, preferring to
// break at paragraph and sentence boundaries, with opts.Overlap runes of
// context carried between consecutive pieces.
func Split(text string, opts Options) []Piece {
	if opts.Size <= 0 {
		opts.Size = 1000
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}

	spans := breakSpans(text, separators, opts.Size)
	merged := mergeWithOverlap(spans, opts)

	pieces := make([]Piece, 0, len(merged))
	for _, content := range merged {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		pieces = append(pieces, Piece{Content: content, Index: len(pieces)})
	}
	return pieces
}

// breakSpans recursively splits oversized spans at the best available
// separator, falling back to a hard rune cut when no separator remains.
func breakSpans(text string, seps []string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	if len(seps) == 0 {
		return hardCut(text, size)
	}

	parts := strings.Split(text, seps[0])
	var spans []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			spans = append(spans, breakSpans(current.String(), seps[1:], size)...)
			current.Reset()
		}
	}

	for _, part := range parts {
		candidate := part
		if current.Len() > 0 {
			candidate = current.String() + seps[0] + part
		}
		if utf8.RuneCountInString(candidate) > size {
			flush()
			current.WriteString(part)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(seps[0])
		}
		current.WriteString(part)
	}
	flush()

	return spans
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeWithOverlap packs spans back into pieces near the target size and
// prefixes each piece after the first with the tail of its predecessor.
func mergeWithOverlap(spans []string, opts Options) []string {
	var pieces []string
	var current strings.Builder

	for _, span := range spans {
		if current.Len() > 0 &&
			utf8.RuneCountInString(current.String())+utf8.RuneCountInString(span)+1 > opts.Size {
			pieces = append(pieces, current.String())
			current.Reset()
			if opts.Overlap > 0 && len(pieces) > 0 {
				current.WriteString(tail(pieces[len(pieces)-1], opts.Overlap))
				current.WriteString(" ")
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(span)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// tail returns the last n runes of s, cut forward to a word boundary so
// overlap never starts mid-word.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	t := string(runes[len(runes)-n:])
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[i+1:]
	}
	return t
}
