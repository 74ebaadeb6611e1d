// Package fitness holds the closed-form body metric calculations used to
// derive calorie and macro targets from a user profile.
package fitness

import (
	"fmt"
	"math"
	"strings"
)

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

type Goal string

const (
	LoseWeight          Goal = "lose_weight"
	GainMuscle          Goal = "gain_muscle"
	Maintain            Goal = "maintain"
	AthleticPerformance Goal = "athletic_performance"
)

// goalAliases maps the alternate goal spellings onto the canonical ones.
var goalAliases = map[string]Goal{
	"lose_weight":          LoseWeight,
	"weight_loss":          LoseWeight,
	"gain_muscle":          GainMuscle,
	"muscle_gain":          GainMuscle,
	"maintain":             Maintain,
	"maintenance":          Maintain,
	"athletic_performance": AthleticPerformance,
}

var goalOffsets = map[Goal]float64{
	LoseWeight:          -500,
	GainMuscle:          300,
	Maintain:            0,
	AthleticPerformance: 200,
}

// activityMultipliers maps activity level names to their TDEE multiplier.
// The values are the only multipliers a profile may carry.
var activityMultipliers = map[string]float64{
	"sedentary":   1.2,
	"light":       1.375,
	"moderate":    1.55,
	"active":      1.725,
	"very_active": 1.9,
}

// ActivityMultipliers lists the allowed multipliers in ascending order.
var ActivityMultipliers = []float64{1.2, 1.375, 1.55, 1.725, 1.9}

// MinCalories is the floor applied to weight loss targets.
const MinCalories = 1200

const multiplierTolerance = 1e-9

// ParseGoal normalises a goal name, accepting the alternate spellings.
func ParseGoal(s string) (Goal, error) {
	g, ok := goalAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown fitness goal %q", s)
	}
	return g, nil
}

// LookupActivityLevel returns the multiplier for a named activity level.
func LookupActivityLevel(name string) (float64, bool) {
	m, ok := activityMultipliers[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// ValidActivityMultiplier reports whether m is one of ActivityMultipliers.
func ValidActivityMultiplier(m float64) bool {
	for _, allowed := range ActivityMultipliers {
		if math.Abs(m-allowed) < multiplierTolerance {
			return true
		}
	}
	return false
}

// BMR computes basal metabolic rate with the Mifflin-St Jeor equation.
func BMR(weightKg, heightCm float64, age int, gender Gender) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if gender == Male {
		return base + 5
	}
	return base - 161
}

// TDEE is BMR scaled by the activity multiplier.
func TDEE(bmr, multiplier float64) float64 {
	return bmr * multiplier
}

// GoalOffset is the signed calorie adjustment for a goal.
func GoalOffset(goal Goal) float64 {
	return goalOffsets[goal]
}

// CalorieTarget applies the goal offset to TDEE. Weight loss never drops
// below MinCalories.
func CalorieTarget(tdee float64, goal Goal) float64 {
	target := tdee + GoalOffset(goal)
	if goal == LoseWeight && target < MinCalories {
		return MinCalories
	}
	return target
}

// Macros are daily gram targets.
type Macros struct {
	ProteinG float64 `json:"protein"`
	CarbsG   float64 `json:"carbs"`
	FatG     float64 `json:"fat"`
}

// MacroSplit divides calories into protein/carbs/fat by a goal-specific
// percentage split (protein and carbs at 4 kcal/g, fat at 9 kcal/g).
func MacroSplit(calories float64, goal Goal) Macros {
	protein, carbs, fat := 0.30, 0.40, 0.30
	switch goal {
	case GainMuscle:
		protein, carbs, fat = 0.35, 0.45, 0.20
	case LoseWeight:
		protein, carbs, fat = 0.40, 0.30, 0.30
	}
	return Macros{
		ProteinG: calories * protein / 4,
		CarbsG:   calories * carbs / 4,
		FatG:     calories * fat / 9,
	}
}

func BMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return weightKg / (m * m)
}

// WaterGlasses is the daily water recommendation in 250ml glasses
// (35ml per kg, plus extra glasses for the two most active levels).
func WaterGlasses(weightKg, multiplier float64) int {
	glasses := int(math.Round(weightKg * 35 / 250))
	switch {
	case math.Abs(multiplier-1.9) < multiplierTolerance:
		glasses += 2
	case math.Abs(multiplier-1.725) < multiplierTolerance:
		glasses++
	}
	return glasses
}
