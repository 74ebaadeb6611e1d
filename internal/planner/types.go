package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/safety"
	"ai-fitness-planner/internal/shared"
)

// PlanType selects between a workout and a meal plan.
type PlanType string

const (
	Workout PlanType = "workout"
	Meal    PlanType = "meal"
)

func (t PlanType) Valid() bool {
	return t == Workout || t == Meal
}

// Title is the human label used in plan names.
func (t PlanType) Title() string {
	if t == Meal {
		return "Meal"
	}
	return "Workout"
}

// GenerationType is the value stored with plans and audit rows.
func (t PlanType) GenerationType() string {
	return "ensemble-" + string(t)
}

func (t PlanType) safetyKind() safety.PlanKind {
	if t == Meal {
		return safety.Meal
	}
	return safety.Workout
}

// ProviderSpec names a provider and an optional model override. In JSON it
// is either a bare provider name or {"provider": ..., "model": ...}.
type ProviderSpec struct {
	Provider llm.ProviderName `json:"provider"`
	Model    string           `json:"model,omitempty"`
}

func (s *ProviderSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*s = ProviderSpec{Provider: llm.ProviderName(name)}
		return nil
	}

	type plain ProviderSpec
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("provider must be a name or an object with provider and model: %w", err)
	}
	*s = ProviderSpec(p)
	return nil
}

func (s ProviderSpec) String() string {
	if s.Model == "" {
		return string(s.Provider)
	}
	return string(s.Provider) + ":" + s.Model
}

// PlanRequest is one call to GeneratePlan. It is never persisted.
type PlanRequest struct {
	UserID      string              `json:"userId"`
	PlanType    PlanType            `json:"planType"`
	Providers   []ProviderSpec      `json:"providers,omitempty"`
	Synthesizer *ProviderSpec       `json:"synthesizer,omitempty"`
	Profile     fitness.UserProfile `json:"userProfile"`
}

// ProviderOutput is the text one fan-out provider produced.
type ProviderOutput struct {
	Spec  ProviderSpec
	Text  string
	Usage shared.TokenUsage
}

// Source is the caller-facing summary of one successful fan-out output.
type Source struct {
	Provider llm.ProviderName `json:"provider"`
	Model    string           `json:"model,omitempty"`
	Preview  string           `json:"preview"`
}

// Plan is a synthesized plan as stored in the plans table.
type Plan struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	PlanType       PlanType        `json:"planType"`
	GenerationType string          `json:"generationType"`
	Content        string          `json:"content"`
	Flagged        bool            `json:"flagged"`
	Reasons        []string        `json:"reasons"`
	Targets        fitness.Targets `json:"targets"`
	Sources        []Source        `json:"sources"`
	Synthesizer    ProviderSpec    `json:"synthesizer"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// GenerationRecord is an append-only audit row for one plan generation.
type GenerationRecord struct {
	ID             string         `json:"id"`
	PlanID         string         `json:"planId"`
	UserID         string         `json:"userId"`
	GenerationType string         `json:"generationType"`
	Providers      []ProviderSpec `json:"providers"`
	Synthesizer    ProviderSpec   `json:"synthesizer"`
	Prompt         string         `json:"prompt"`
	Response       string         `json:"response"`
	TokensUsed     int            `json:"tokensUsed"`
	Flagged        bool           `json:"flagged"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Result is what GeneratePlan hands back to the caller.
type Result struct {
	Plan        *Plan                  `json:"plan"`
	Sources     []Source               `json:"sources"`
	Synthesizer ProviderSpec           `json:"synthesizer"`
	Flagged     bool                   `json:"flagged"`
	Reasons     []string               `json:"reasons,omitempty"`
	Targets     fitness.RoundedTargets `json:"targets"`
}

// Citation is a research reference that can be added to a prompt.
type Citation struct {
	PMID    string
	Title   string
	Journal string
	Year    string
}

// Stage is a step of a single generation request.
type Stage string

const (
	StageReceived     Stage = "received"
	StageCalculating  Stage = "calculating"
	StagePrompting    Stage = "prompting"
	StageFanningOut   Stage = "fanning_out"
	StageSynthesizing Stage = "synthesizing"
	StageFiltering    Stage = "filtering"
	StagePersisting   Stage = "persisting"
	StageResponded    Stage = "responded"
)
