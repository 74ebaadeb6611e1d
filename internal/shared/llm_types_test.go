package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
}

func TestTokenUsageTotal(t *testing.T) {
	assert.Equal(t, 30, TokenUsage{PromptTokens: 10, CompletionTokens: 20}.Total())
	assert.Equal(t, 7, TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 7}.Total())
}
