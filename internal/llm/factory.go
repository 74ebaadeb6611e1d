package llm

import (
	"context"
	"fmt"

	"ai-fitness-planner/internal/cache"
	"ai-fitness-planner/internal/config"
)

// NewRegistryFromConfig builds a generator for every configured provider.
// c may be nil, which disables response caching.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, c cache.Cache) (*Registry, error) {
	reg := NewRegistry(cfg.LLM.Timeout)

	for _, name := range cfg.LLM.ConfiguredProviders() {
		pc := cfg.LLM.Providers[name]

		var gen TextGenerator
		switch ProviderName(name) {
		case Gemini:
			g, err := NewGeminiClient(ctx, pc)
			if err != nil {
				_ = reg.Close()
				return nil, err
			}
			gen = g
		case Claude:
			gen = NewClaudeClient(pc)
		case OpenRouter:
			gen = NewOpenRouterClient(pc)
		case HuggingFace:
			gen = NewHuggingFaceClient(pc)
		case Groq:
			gen = NewGroqClient(pc)
		case OpenAI:
			gen = NewOpenAIClient(pc)
		default:
			return nil, fmt.Errorf("unsupported provider %q", name)
		}

		if pc.MaxConcurrent > 0 {
			gen = NewLimitedGenerator(gen, pc.MaxConcurrent)
		}
		if c != nil {
			gen = NewCachedGenerator(ProviderName(name), pc.Model, gen, c, cfg.Cache.TTL)
		}
		reg.Register(ProviderName(name), gen)
	}
	return reg, nil
}
