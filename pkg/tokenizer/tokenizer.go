package tokenizer

import (
	"strings"
)

// Estimate gives an approximate token count for English text, good enough
// for context budgeting and ingestion stats. Exact counts would need a
// model-specific tokenizer.
func Estimate(text string) int {
	words := strings.Fields(text)
	return max(len(words)*4/3, 1)
}
