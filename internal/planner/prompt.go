package planner

import (
	"bytes"
	"embed"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"ai-fitness-planner/internal/fitness"
)

//go:embed prompts/*.md
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").ParseFS(promptFS, "prompts/*.md"))

type planPromptData struct {
	Profile  fitness.UserProfile
	Targets  fitness.RoundedTargets
	Evidence []Citation
}

// BuildPlanPrompt renders the fan-out prompt. The same inputs always yield
// the same string.
func BuildPlanPrompt(planType PlanType, profile fitness.UserProfile, targets fitness.Targets, evidence []Citation) (string, error) {
	if !planType.Valid() {
		return "", fmt.Errorf("unknown plan type %q", planType)
	}

	// evidence order must not depend on lookup order
	sorted := slices.Clone(evidence)
	slices.SortStableFunc(sorted, func(a, b Citation) int { return strings.Compare(a.PMID, b.PMID) })

	var buf bytes.Buffer
	err := prompts.ExecuteTemplate(&buf, string(planType)+".md", planPromptData{
		Profile:  profile.Normalize(),
		Targets:  targets.Rounded(),
		Evidence: sorted,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", planType, err)
	}
	return buf.String(), nil
}

// BuildSynthesisPrompt embeds each output under a "PROVIDER i (NAME):" label.
func BuildSynthesisPrompt(planType PlanType, outputs []ProviderOutput) (string, error) {
	parts := make([]string, len(outputs))
	for i, o := range outputs {
		parts[i] = fmt.Sprintf("PROVIDER %d (%s):\n%s", i+1, strings.ToUpper(string(o.Spec.Provider)), o.Text)
	}

	var buf bytes.Buffer
	err := prompts.ExecuteTemplate(&buf, "synthesis.md", struct {
		PlanType PlanType
		Inputs   string
	}{
		PlanType: planType,
		Inputs:   strings.Join(parts, "\n\n---\n\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render synthesis prompt: %w", err)
	}
	return buf.String(), nil
}
