package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 1, Estimate(""))
	assert.Equal(t, 1, Estimate("word"))
	// Three words come out slightly above the word count.
	assert.Equal(t, 4, Estimate("three short words"))
}
