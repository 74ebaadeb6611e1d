package llm

import (
	"context"
	"time"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/shared"
)

// ProviderName identifies one text-generation backend.
type ProviderName string

const (
	Claude      ProviderName = config.ProviderClaude
	Gemini      ProviderName = config.ProviderGemini
	OpenRouter  ProviderName = config.ProviderOpenRouter
	HuggingFace ProviderName = config.ProviderHuggingFace
	Groq        ProviderName = config.ProviderGroq
	OpenAI      ProviderName = config.ProviderOpenAI
)

// Known reports whether name is a supported provider.
func Known(name ProviderName) bool {
	for _, p := range config.ProviderOrder {
		if string(name) == p {
			return true
		}
	}
	return false
}

// Request is a single normalized generation call. Model overrides the
// provider's configured model when set; Timeout overrides the registry default.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is implemented by every provider adapter.
type TextGenerator interface {
	GenerateContent(ctx context.Context, req Request) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
