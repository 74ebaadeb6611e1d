package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ai-fitness-planner/internal/cache"
	"ai-fitness-planner/internal/shared"
)

// CachedGenerator wraps a TextGenerator and serves repeated identical
// requests from a cache.
type CachedGenerator struct {
	provider ProviderName
	model    string
	realGen  TextGenerator
	cache    cache.Cache
	ttl      time.Duration
}

// NewCachedGenerator creates a new CachedGenerator. model is the provider's
// configured model and is part of the key when the request does not override it.
func NewCachedGenerator(provider ProviderName, model string, realGen TextGenerator, c cache.Cache, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{provider: provider, model: model, realGen: realGen, cache: c, ttl: ttl}
}

type cachedEntry struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// GenerateContent checks the cache first. Cache errors degrade to a direct
// call. Hits report zero token usage since nothing was spent.
func (c *CachedGenerator) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	key := c.key(req)

	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var entry cachedEntry
		if json.Unmarshal(data, &entry) == nil && entry.Content != "" {
			return ContentResponse{Content: entry.Content, Usage: shared.TokenUsage{Model: entry.Model}}, nil
		}
	}

	resp, err := c.realGen.GenerateContent(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.Content != "" {
		if data, err := json.Marshal(cachedEntry{Content: resp.Content, Model: resp.Usage.Model}); err == nil {
			_ = c.cache.Set(ctx, key, data, c.ttl)
		}
	}
	return resp, nil
}

func (c *CachedGenerator) Close() error {
	if closer, ok := c.realGen.(Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *CachedGenerator) key(req Request) string {
	model := firstNonEmpty(req.Model, c.model)
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%g\x00%g\x00", c.provider, model, req.MaxTokens, req.Temperature, req.TopP)
	h.Write([]byte(req.Prompt))
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}
