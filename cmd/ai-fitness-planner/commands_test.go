package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) (env, *config.Config) {
	cfg := &config.Config{
		Env:      "test",
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cli.db")},
		LLM: config.LLMConfig{
			Providers:        map[string]config.ProviderConfig{},
			DefaultProvider:  config.ProviderHuggingFace,
			Timeout:          time.Second,
			SynthesisTimeout: time.Second,
		},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 10, Burst: 5},
	}
	return env{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
		newLogger:  func(*config.Config) (*logger.Logger, error) { return logger.NewNop(), nil },
	}, cfg
}

func run(t *testing.T, e env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(e)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTargetsCommand(t *testing.T) {
	e, _ := testEnv(t)
	out, err := run(t, e, "targets", "--age", "30", "--gender", "male", "--height", "180", "--weight", "80", "--activity", "1.55", "--goal", "gain_muscle")
	require.NoError(t, err)

	var targets struct {
		BMR      int `json:"bmr"`
		Calories int `json:"calories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	assert.Equal(t, 1780, targets.BMR)
	assert.Equal(t, 3059, targets.Calories)
}

func TestTargetsCommandNamedActivity(t *testing.T) {
	e, _ := testEnv(t)
	named, err := run(t, e, "targets", "--age", "30", "--gender", "male", "--height", "180", "--weight", "80", "--activity", "moderate")
	require.NoError(t, err)
	numeric, err := run(t, e, "targets", "--age", "30", "--gender", "male", "--height", "180", "--weight", "80", "--activity", "1.55")
	require.NoError(t, err)
	assert.Equal(t, numeric, named)
}

func TestTargetsCommandErrors(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "targets", "--age", "30")
	assert.Error(t, err, "required flags")

	_, err = run(t, e, "targets", "--age", "30", "--gender", "male", "--height", "180", "--weight", "80", "--activity", "couch")
	assert.ErrorContains(t, err, "unknown activity level")

	_, err = run(t, e, "targets", "--age", "30", "--gender", "male", "--height", "180", "--weight", "80", "--activity", "1.3")
	assert.Error(t, err)
}

func TestUsageCommands(t *testing.T) {
	e, cfg := testEnv(t)

	out, err := run(t, e, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied.")

	out, err = run(t, e, "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "No usage recorded yet.")

	db, err := database.NewDB(cfg.Database)
	require.NoError(t, err)
	store := metrics.NewStore(db)
	now := time.Now().UTC()
	require.NoError(t, store.Record(context.Background(), metrics.ExecutionMetric{Provider: "claude", PromptTokens: 10, CompletionTokens: 5, Success: true, Timestamp: now}))
	require.NoError(t, store.Record(context.Background(), metrics.ExecutionMetric{Provider: "claude", PromptTokens: 1, Timestamp: now.AddDate(0, 0, -90)}))
	require.NoError(t, db.Close())

	out, err = run(t, e, "usage", "--days", "3")
	require.NoError(t, err)
	assert.Contains(t, out, now.Format("2006-01-02"))
	assert.Contains(t, out, "DATE")

	out, err = run(t, e, "usage-cleanup", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 old metric records.")

	_, err = run(t, e, "usage-cleanup", "--days", "0")
	assert.Error(t, err)
}

func TestPlanCommandWithoutProviders(t *testing.T) {
	e, _ := testEnv(t)
	_, err := run(t, e, "plan", "--user", "u1", "--type", "meal", "--age", "30", "--gender", "female", "--height", "165", "--weight", "60")
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestResearchCommandNeedsTermOrRelated(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "research", "--abstracts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--related")
}

func TestParseSpec(t *testing.T) {
	assert.Equal(t, planner.ProviderSpec{Provider: llm.Claude}, parseSpec("Claude"))
	assert.Equal(t, planner.ProviderSpec{Provider: llm.OpenRouter, Model: "meta-llama/llama-3:free"}, parseSpec("openrouter:meta-llama/llama-3:free"))
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf, []metrics.DailyUsage{{Date: "2026-05-05", TotalPrompt: 3, TotalCompletion: 4, TotalExecution: 2, Failures: 1}}))
	assert.Regexp(t, `2026-05-05\s+3\s+4\s+2\s+1`, buf.String())
}
