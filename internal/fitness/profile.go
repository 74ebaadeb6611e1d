package fitness

import (
	"errors"
	"fmt"
	"strings"
)

// Profile bounds accepted at the boundary.
const (
	MinAge      = 10
	MaxAge      = 100
	MinHeightCm = 100.0
	MaxHeightCm = 230.0
	MinWeightKg = 30.0
	MaxWeightKg = 300.0
)

// UserProfile is the body metric input to a single generation request.
type UserProfile struct {
	Age           int     `json:"age"`
	Gender        Gender  `json:"gender"`
	HeightCm      float64 `json:"height"`
	WeightKg      float64 `json:"weight"`
	ActivityLevel float64 `json:"activityLevel"`
	FitnessGoal   Goal    `json:"fitnessGoal"`
}

// ValidationError lists every field of a profile that failed validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid profile: " + strings.Join(e.Problems, "; ")
}

// Normalize returns a copy with the goal and gender in canonical form.
func (p UserProfile) Normalize() UserProfile {
	p.Gender = Gender(strings.ToLower(strings.TrimSpace(string(p.Gender))))
	if g, err := ParseGoal(string(p.FitnessGoal)); err == nil {
		p.FitnessGoal = g
	}
	return p
}

// Validate checks the profile against the physical bounds and enum sets.
func (p UserProfile) Validate() error {
	var problems []string
	if p.Age < MinAge || p.Age > MaxAge {
		problems = append(problems, fmt.Sprintf("age must be between %d and %d", MinAge, MaxAge))
	}
	if p.HeightCm < MinHeightCm || p.HeightCm > MaxHeightCm {
		problems = append(problems, fmt.Sprintf("height must be between %.0f and %.0f cm", MinHeightCm, MaxHeightCm))
	}
	if p.WeightKg < MinWeightKg || p.WeightKg > MaxWeightKg {
		problems = append(problems, fmt.Sprintf("weight must be between %.0f and %.0f kg", MinWeightKg, MaxWeightKg))
	}
	if p.Gender != Male && p.Gender != Female {
		problems = append(problems, "gender must be male or female")
	}
	if !ValidActivityMultiplier(p.ActivityLevel) {
		problems = append(problems, "activityLevel must be one of 1.2, 1.375, 1.55, 1.725, 1.9")
	}
	if _, ok := goalOffsets[p.FitnessGoal]; !ok {
		problems = append(problems, fmt.Sprintf("unknown fitnessGoal %q", p.FitnessGoal))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Targets are the unrounded calculator outputs for a profile.
type Targets struct {
	BMR          float64 `json:"bmr"`
	TDEE         float64 `json:"tdee"`
	Calories     float64 `json:"calories"`
	Macros       Macros  `json:"macros"`
	BMI          float64 `json:"bmi"`
	WaterGlasses int     `json:"waterGlasses"`
}

// Calculate validates the profile and derives its targets.
func Calculate(p UserProfile) (Targets, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return Targets{}, err
	}

	bmr := BMR(p.WeightKg, p.HeightCm, p.Age, p.Gender)
	tdee := TDEE(bmr, p.ActivityLevel)
	calories := CalorieTarget(tdee, p.FitnessGoal)
	return Targets{
		BMR:          bmr,
		TDEE:         tdee,
		Calories:     calories,
		Macros:       MacroSplit(calories, p.FitnessGoal),
		BMI:          BMI(p.WeightKg, p.HeightCm),
		WaterGlasses: WaterGlasses(p.WeightKg, p.ActivityLevel),
	}, nil
}

// IsValidationError reports whether err came from profile validation.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
