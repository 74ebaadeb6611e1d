package shared

import (
	"time"
	"unicode/utf8"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Total returns TotalTokens, or the sum of prompt and completion tokens when
// the provider did not report a total.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// CallMeta holds operational metadata for one provider call.
type CallMeta struct {
	Provider  string
	Role      string // "fanout" or "synthesis"
	Usage     TokenUsage
	Latency   time.Duration
	Err       error
	Transient bool // the failure may succeed on retry
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
