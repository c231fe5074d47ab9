package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("   \n\t"))
	assert.Equal(t, 4, EstimateTokens("one two  three\nfour"))
}

func TestTruncateTokens(t *testing.T) {
	assert.Equal(t, "a b", TruncateTokens("a b c d", 2))
	assert.Equal(t, "a b c d", TruncateTokens("a b c d", 4))
	assert.Equal(t, "a b c d", TruncateTokens("a b c d", 10))
	assert.Equal(t, "", TruncateTokens("a b c d", 0))
	assert.Equal(t, "", TruncateTokens("a b c d", -1))
}
