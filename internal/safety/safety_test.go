package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t  ",
		strings.Repeat("Squat 5 sets of 5 reps at 1800 kcal per day. ", 80_000),
		strings.Repeat("9", 100) + " sets",
		"\xff\xfe invalid utf-8 99999999999999999999 reps",
	}
	for _, kind := range []PlanKind{Workout, Meal} {
		for _, in := range inputs {
			var res Result
			require.NotPanics(t, func() { res = Filter(in, kind) })
			assert.NotNil(t, res.Reasons)
			assert.True(t, strings.HasSuffix(res.SafeText, Disclaimer) || strings.Contains(strings.ToLower(res.SafeText), "disclaimer"))
		}
	}
}

func TestFilterEmptyInputs(t *testing.T) {
	res := Filter("", Workout)
	assert.False(t, res.Flagged)
	assert.Empty(t, res.Reasons)
	assert.Equal(t, Disclaimer, res.SafeText)
}

func TestFilterFlagsAndRedactsSubstances(t *testing.T) {
	res := Filter("Stack anabolic steroids and SARMs for faster gains.", Workout)

	assert.True(t, res.Flagged)
	assert.Contains(t, res.Reasons, "Matched pattern: steroid")
	assert.Contains(t, res.Reasons, "Matched pattern: anabolic")
	assert.Contains(t, res.Reasons, "Matched pattern: sar[mn]")
	assert.NotContains(t, strings.ToLower(res.SafeText), "steroid")
	assert.NotContains(t, strings.ToLower(res.SafeText), "sarm")
	assert.Equal(t, 3, strings.Count(res.SafeText, "[unsafe-substance]"))
}

func TestFilterDangerousAdvice(t *testing.T) {
	for _, text := range []string{
		"Train with no rest days for results.",
		"Max out every set until failure.",
		"Starve yourself on Sundays.",
		"Try a dry fast of 72 hours, dry fasting 48 works too.",
		"Drink no water before weigh-in.",
		"This might be illegal in some places.",
		"Self-harm is never the answer.",
	} {
		res := Filter(text, Meal)
		assert.True(t, res.Flagged, text)
	}
}

func TestClampVolume(t *testing.T) {
	res := Filter("Bench press: 12 sets of 50 reps, then curls 3 sets of 12 reps.", Workout)

	assert.Contains(t, res.SafeText, "8 sets of 30 reps")
	assert.Contains(t, res.SafeText, "3 sets of 12 reps")
	assert.True(t, res.Flagged)
	assert.Len(t, res.Reasons, 2)
}

func TestEnforceMinCalories(t *testing.T) {
	text := "Daily target: 900 kcal.\nBreakfast: oats, 350 kcal\nSnack: apple 95 calories\nEat 800 calories per day."
	res := Filter(text, Meal)

	assert.Contains(t, res.SafeText, "Daily target: 1200 kcal")
	assert.Contains(t, res.SafeText, "oats, 350 kcal")
	assert.Contains(t, res.SafeText, "apple 95 calories")
	assert.Contains(t, res.SafeText, "1200 calories per day")
	assert.True(t, res.Flagged)

	// meal rules do not touch workout plans
	workout := Filter("Daily target: 900 kcal", Workout)
	assert.Contains(t, workout.SafeText, "900 kcal")
}

func TestMealSubtotalsAreNotFloored(t *testing.T) {
	text := "Breakfast (7am):\n- Oats 300 kcal\n- Berries 150 kcal\nTotal: 450 kcal\n\n" +
		"Lunch:\nMeal total 620 calories\n\nDaily total: 3059 kcal"
	res := Filter(text, Meal)

	assert.Contains(t, res.SafeText, "Total: 450 kcal")
	assert.Contains(t, res.SafeText, "Meal total 620 calories")
	assert.Contains(t, res.SafeText, "Daily total: 3059 kcal")
	assert.False(t, res.Flagged, "reasons: %v", res.Reasons)
	assert.Empty(t, res.Reasons)

	low := Filter("Lunch: 600 kcal\nTotal for the day: 900 kcal", Meal)
	assert.Contains(t, low.SafeText, "Lunch: 600 kcal")
	assert.Contains(t, low.SafeText, "Total for the day: 1200 kcal")
	assert.Equal(t, []string{"Raised daily calories from 900 to 1200"}, low.Reasons)
}

func TestDisclaimerAppendedOnce(t *testing.T) {
	res := Filter("Plan text", Workout)
	again := Filter(res.SafeText, Workout)
	assert.Equal(t, res.SafeText, again.SafeText)
	assert.Equal(t, 1, strings.Count(again.SafeText, "Disclaimer:"))
}

func TestFilterDeterministic(t *testing.T) {
	text := "Day 1: 15 sets squats. Total 1000 kcal daily."
	assert.Equal(t, Filter(text, Workout), Filter(text, Workout))
	assert.Equal(t, Filter(text, Meal), Filter(text, Meal))
}
