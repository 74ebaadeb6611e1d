package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable NewFromEnv reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY",
		"OPENROUTER_MODEL", "HUGGINGFACE_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY",
		"LLM_PROVIDER", "LLM_SYNTHESIZER", "LLM_TIMEOUT_MS", "LLM_SYNTHESIS_TIMEOUT_MS",
		"DATABASE_DRIVER", "DATABASE_PATH", "DATABASE_URL", "CONFIG_FILE",
		"RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "CLAUDE_MAX_CONCURRENT", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
	// godotenv.Load looks in the working directory.
	t.Chdir(t.TempDir())
}

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "data/fitness.db", cfg.Database.Path)
		assert.Equal(t, ProviderHuggingFace, cfg.LLM.DefaultProvider)
		assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
		assert.Empty(t, cfg.LLM.ConfiguredProviders())
		assert.Equal(t, "claude-3-5-sonnet-latest", cfg.LLM.Providers[ProviderClaude].Model)
		assert.Empty(t, cfg.TrustedProxies)
	})

	t.Run("TrustedProxies", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)

		t.Setenv("TRUSTED_PROXIES", "load-balancer")
		_, err = NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
	})

	t.Run("ConfiguredProvidersKeepOrder", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GROQ_API_KEY", "groq_key")
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("ANTHROPIC_API_KEY", "claude_key")
		t.Setenv("OPENROUTER_API_KEY", "or_key")
		t.Setenv("CLAUDE_MAX_CONCURRENT", "2")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		// openrouter is skipped without a model
		assert.Equal(t, []string{ProviderClaude, ProviderGemini, ProviderGroq}, cfg.LLM.ConfiguredProviders())
		assert.Equal(t, "gemini_key", cfg.LLM.Providers[ProviderGemini].APIKey)
		assert.Equal(t, 2, cfg.LLM.Providers[ProviderClaude].MaxConcurrent)
	})

	t.Run("OpenRouterNeedsModel", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "or_key")
		t.Setenv("OPENROUTER_MODEL", "meta-llama/llama-3.1-70b-instruct")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{ProviderOpenRouter}, cfg.LLM.ConfiguredProviders())
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", "mysql")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_DRIVER")
	})

	t.Run("PostgresNeedsURL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", "postgres")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Equal(t, "DATABASE_URL environment variable not set", err.Error())
	})

	t.Run("UnknownSynthesizer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LLM_SYNTHESIZER", "eliza")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LLM_SYNTHESIZER")
	})

	t.Run("ConfigFile", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("llm_timeout_ms: 5000\nllm_synthesizer: gemini\n"), 0o644))
		t.Setenv("CONFIG_FILE", path)

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, ProviderGemini, cfg.LLM.Synthesizer)
	})
}
