package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names, in the order they are tried when a request names none.
const (
	ProviderClaude      = "claude"
	ProviderGemini      = "gemini"
	ProviderOpenRouter  = "openrouter"
	ProviderHuggingFace = "huggingface"
	ProviderGroq        = "groq"
	ProviderOpenAI      = "openai"
)

var ProviderOrder = []string{
	ProviderClaude,
	ProviderGemini,
	ProviderOpenRouter,
	ProviderHuggingFace,
	ProviderGroq,
	ProviderOpenAI,
}

// Config holds the configuration for the application.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	Database  DatabaseConfig
	LLM       LLMConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Research  ResearchConfig
	Telegram  TelegramConfig

	JWTSecret          string
	CORSAllowedOrigins []string
	TrustedProxies     []string
	OTLPEndpoint       string
}

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string
	URL    string
}

// ProviderConfig is the credential and model selection for one LLM provider.
type ProviderConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxConcurrent int
}

type LLMConfig struct {
	Providers        map[string]ProviderConfig
	DefaultProvider  string
	Synthesizer      string
	Timeout          time.Duration
	SynthesisTimeout time.Duration
}

type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type ResearchConfig struct {
	Enabled bool
	APIKey  string
	Tool    string
	Email   string
}

type TelegramConfig struct {
	BotToken   string
	WebhookURL string
	AdminID    int64
}

// Configured reports whether the provider has everything it needs to be called.
func (c LLMConfig) Configured(name string) bool {
	p, ok := c.Providers[name]
	if !ok || p.APIKey == "" {
		return false
	}
	// OpenRouter has no sensible default model.
	if name == ProviderOpenRouter && p.Model == "" {
		return false
	}
	return true
}

// ConfiguredProviders lists configured providers in ProviderOrder.
func (c LLMConfig) ConfiguredProviders() []string {
	var names []string
	for _, name := range ProviderOrder {
		if c.Configured(name) {
			names = append(names, name)
		}
	}
	return names
}

type providerKeys struct {
	apiKey []string
	model  string
	def    string
}

var providerEnv = map[string]providerKeys{
	ProviderClaude:      {apiKey: []string{"anthropic_api_key"}, model: "claude_model", def: "claude-3-5-sonnet-latest"},
	ProviderGemini:      {apiKey: []string{"google_generative_ai_api_key", "gemini_api_key"}, model: "gemini_model", def: "gemini-1.5-flash"},
	ProviderOpenRouter:  {apiKey: []string{"openrouter_api_key"}, model: "openrouter_model"},
	ProviderHuggingFace: {apiKey: []string{"huggingface_api_key"}, model: "hf_model", def: "mistralai/Mistral-7B-Instruct-v0.2"},
	ProviderGroq:        {apiKey: []string{"groq_api_key"}, model: "groq_model", def: "llama-3.3-70b-versatile"},
	ProviderOpenAI:      {apiKey: []string{"openai_api_key"}, model: "openai_model", def: "gpt-4o-mini"},
}

// NewFromEnv creates a new Config object from environment variables, an
// optional .env file and an optional CONFIG_FILE.
func NewFromEnv() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read CONFIG_FILE %s: %w", path, err)
		}
	}

	cfg := &Config{
		Env:      v.GetString("app_env"),
		LogLevel: v.GetString("log_level"),
		Port:     v.GetString("port"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database_driver")),
			Path:   v.GetString("database_path"),
			URL:    v.GetString("database_url"),
		},
		LLM: LLMConfig{
			Providers:        make(map[string]ProviderConfig, len(ProviderOrder)),
			DefaultProvider:  strings.ToLower(v.GetString("llm_provider")),
			Synthesizer:      strings.ToLower(v.GetString("llm_synthesizer")),
			Timeout:          time.Duration(v.GetInt("llm_timeout_ms")) * time.Millisecond,
			SynthesisTimeout: time.Duration(v.GetInt("llm_synthesis_timeout_ms")) * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("llm_cache_enabled"),
			TTL:           v.GetDuration("llm_cache_ttl"),
			RedisAddr:     v.GetString("redis_addr"),
			RedisPassword: v.GetString("redis_password"),
			RedisDB:       v.GetInt("redis_db"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("rate_limit_rpm"),
			Burst:             v.GetInt("rate_limit_burst"),
		},
		Research: ResearchConfig{
			Enabled: v.GetBool("research_enabled"),
			APIKey:  v.GetString("ncbi_api_key"),
			Tool:    v.GetString("ncbi_tool"),
			Email:   v.GetString("ncbi_email"),
		},
		Telegram: TelegramConfig{
			BotToken:   v.GetString("telegram_bot_token"),
			WebhookURL: v.GetString("telegram_webhook_url"),
			AdminID:    v.GetInt64("telegram_admin_id"),
		},
		JWTSecret:          v.GetString("api_jwt_secret"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		TrustedProxies:     splitList(v.GetString("trusted_proxies")),
		OTLPEndpoint:       v.GetString("otel_exporter_otlp_endpoint"),
	}

	for _, name := range ProviderOrder {
		keys := providerEnv[name]
		p := ProviderConfig{
			Model:         v.GetString(keys.model),
			BaseURL:       v.GetString(name + "_base_url"),
			MaxConcurrent: v.GetInt(name + "_max_concurrent"),
		}
		for _, k := range keys.apiKey {
			if p.APIKey = v.GetString(k); p.APIKey != "" {
				break
			}
		}
		if p.Model == "" {
			p.Model = keys.def
		}
		cfg.LLM.Providers[name] = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", "8080")

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", "data/fitness.db")

	v.SetDefault("llm_provider", ProviderHuggingFace)
	v.SetDefault("llm_timeout_ms", 30000)
	v.SetDefault("llm_synthesis_timeout_ms", 45000)
	v.SetDefault("llm_cache_ttl", "1h")

	v.SetDefault("rate_limit_rpm", 10)
	v.SetDefault("rate_limit_burst", 5)

	v.SetDefault("ncbi_tool", "ai-fitness-planner")
	v.SetDefault("cors_allowed_origins", "*")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH environment variable not set")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if !slices.Contains(ProviderOrder, c.LLM.DefaultProvider) {
		return fmt.Errorf("LLM_PROVIDER must be one of %s, got %q", strings.Join(ProviderOrder, ", "), c.LLM.DefaultProvider)
	}
	if c.LLM.Synthesizer != "" && !slices.Contains(ProviderOrder, c.LLM.Synthesizer) {
		return fmt.Errorf("LLM_SYNTHESIZER must be one of %s, got %q", strings.Join(ProviderOrder, ", "), c.LLM.Synthesizer)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_MS must be positive")
	}
	if c.LLM.SynthesisTimeout <= 0 {
		return fmt.Errorf("LLM_SYNTHESIS_TIMEOUT_MS must be positive")
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM and RATE_LIMIT_BURST must be positive")
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
			}
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
