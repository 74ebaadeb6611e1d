package planner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(config.DatabaseConfig{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "plans.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func samplePlan(id string, createdAt time.Time) *Plan {
	return &Plan{
		ID:             id,
		UserID:         "user-1",
		Name:           "Meal Plan (Ensemble) - 2026-01-02",
		PlanType:       Meal,
		GenerationType: "ensemble-meal",
		Content:        "Breakfast: oats\n\nDisclaimer: ...",
		Flagged:        true,
		Reasons:        []string{"Raised daily calories from 900 to 1200"},
		Targets: fitness.Targets{
			BMR:          1805,
			TDEE:         2797.75,
			Calories:     3097.75,
			Macros:       fitness.Macros{ProteinG: 271.053125, CarbsG: 348.496875, FatG: 68.83888888888889},
			BMI:          24.691358024691358,
			WaterGlasses: 11,
		},
		Sources:     []Source{{Provider: llm.Claude, Preview: "oats"}, {Provider: llm.OpenRouter, Model: "m", Preview: "eggs"}},
		Synthesizer: ProviderSpec{Provider: llm.Claude},
		CreatedAt:   createdAt,
	}
}

func TestPlanRepositoryRoundTrip(t *testing.T) {
	repo := NewPlanRepository(newTestDB(t))
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)

	want := samplePlan("p1", created)
	require.NoError(t, repo.SavePlan(ctx, want))

	got, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.Flagged, got.Flagged)
	assert.Equal(t, want.Reasons, got.Reasons)
	assert.Equal(t, want.Targets, got.Targets)
	assert.Equal(t, want.Sources, got.Sources)
	assert.Equal(t, want.Synthesizer, got.Synthesizer)
	assert.Equal(t, want.PlanType, got.PlanType)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, want.CreatedAt)
}

func TestPlanRepositoryNotFound(t *testing.T) {
	repo := NewPlanRepository(newTestDB(t))
	_, err := repo.GetPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanRepositoryListRecent(t *testing.T) {
	repo := NewPlanRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.SavePlan(ctx, samplePlan(id, base.Add(time.Duration(i)*time.Hour))))
	}
	other := samplePlan("other", base.Add(5*time.Hour))
	other.UserID = "user-2"
	require.NoError(t, repo.SavePlan(ctx, other))

	plans, err := repo.ListRecentByUserID(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "new", plans[0].ID)
	assert.Equal(t, "mid", plans[1].ID)

	none, err := repo.ListRecentByUserID(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPlanRepositoryEmptyReasons(t *testing.T) {
	repo := NewPlanRepository(newTestDB(t))
	ctx := context.Background()

	p := samplePlan("p1", time.Now().UTC())
	p.Flagged = false
	p.Reasons = nil
	require.NoError(t, repo.SavePlan(ctx, p))

	got, err := repo.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Reasons)
	assert.False(t, got.Flagged)
}

func TestGenerationRepository(t *testing.T) {
	repo := NewGenerationRepository(newTestDB(t))
	ctx := context.Background()
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	rec := &GenerationRecord{
		ID:             "g1",
		PlanID:         "p1",
		UserID:         "user-1",
		GenerationType: "ensemble-workout",
		Providers:      []ProviderSpec{{Provider: llm.Claude}, {Provider: llm.Gemini, Model: "gemini-pro"}},
		Synthesizer:    ProviderSpec{Provider: llm.Claude},
		Prompt:         "prompt",
		Response:       "response",
		TokensUsed:     42,
		CreatedAt:      created,
	}
	require.NoError(t, repo.SaveGeneration(ctx, rec))

	got, err := repo.ListByUserID(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.Providers, got[0].Providers)
	assert.Equal(t, 42, got[0].TokensUsed)
	assert.True(t, created.Equal(got[0].CreatedAt))
}

func TestPlannerWithSQLiteStores(t *testing.T) {
	db := newTestDB(t)
	plans := NewPlanRepository(db)
	generations := NewGenerationRepository(db)

	reg := llm.NewRegistry(time.Second)
	reg.Register(llm.Gemini, &MockTextGenerator{Name: "gemini"})
	p := NewPlanner(reg, plans, generations, Config{DefaultProvider: llm.Gemini, Timeout: time.Second, SynthesisTimeout: time.Second})

	res, err := p.GeneratePlan(context.Background(), validRequest())
	require.NoError(t, err)

	stored, err := plans.GetPlan(context.Background(), res.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.Content, stored.Content)
	assert.Equal(t, res.Plan.Targets, stored.Targets)

	audit, err := generations.ListByUserID(context.Background(), "user-1", 1)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.True(t, stored.CreatedAt.Equal(audit[0].CreatedAt))
}
