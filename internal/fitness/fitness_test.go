package fitness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMRGenderDifference(t *testing.T) {
	for _, tc := range []struct {
		weight, height float64
		age            int
	}{
		{80, 180, 30},
		{55.5, 162.3, 47},
		{120, 201, 19},
		{30, 100, 100},
	} {
		diff := BMR(tc.weight, tc.height, tc.age, Male) - BMR(tc.weight, tc.height, tc.age, Female)
		assert.InDelta(t, 166, diff, 1e-9)
	}
}

func TestTDEEExactForAllowedMultipliers(t *testing.T) {
	bmr := BMR(80, 180, 30, Male)
	for _, m := range ActivityMultipliers {
		assert.Equal(t, bmr*m, TDEE(bmr, m))
		assert.True(t, ValidActivityMultiplier(m))
	}
	for _, m := range []float64{0, 1, 1.3, 1.5, 2, -1.2} {
		assert.False(t, ValidActivityMultiplier(m), "multiplier %v", m)
	}
}

func TestCalorieTargetDeterministic(t *testing.T) {
	for goal := range goalOffsets {
		a := CalorieTarget(2797.75, goal)
		b := CalorieTarget(2797.75, goal)
		assert.Equal(t, a, b)
	}
	assert.Equal(t, 2297.75, CalorieTarget(2797.75, LoseWeight))
	assert.Equal(t, 3097.75, CalorieTarget(2797.75, GainMuscle))
	assert.Equal(t, 2797.75, CalorieTarget(2797.75, Maintain))
	assert.Equal(t, 2997.75, CalorieTarget(2797.75, AthleticPerformance))
	assert.Equal(t, float64(MinCalories), CalorieTarget(1500, LoseWeight))
}

func TestCalculateExample(t *testing.T) {
	targets, err := Calculate(UserProfile{
		Age:           30,
		Gender:        Male,
		HeightCm:      180,
		WeightKg:      80,
		ActivityLevel: 1.55,
		FitnessGoal:   GainMuscle,
	})
	require.NoError(t, err)

	assert.Equal(t, 1780.0, targets.BMR)
	assert.InDelta(t, 2759.0, targets.TDEE, 1e-9)

	r := targets.Rounded()
	assert.Equal(t, 1780, r.BMR)
	assert.Equal(t, 2759, r.TDEE)
	assert.Equal(t, 3059, r.Calories)
	assert.Equal(t, 268, r.ProteinG) // 3059 * 0.35 / 4
	assert.Equal(t, 344, r.CarbsG)
	assert.Equal(t, 68, r.FatG)
	assert.Equal(t, 24.7, r.BMI)
	assert.Equal(t, 11, r.WaterGlasses)
}

func TestCalculateAcceptsGoalAliases(t *testing.T) {
	p := UserProfile{Age: 40, Gender: "Female", HeightCm: 165, WeightKg: 70, ActivityLevel: 1.2, FitnessGoal: "weight_loss"}
	targets, err := Calculate(p)
	require.NoError(t, err)
	expected := math.Max(MinCalories, BMR(70, 165, 40, Female)*1.2-500)
	assert.InDelta(t, expected, targets.Calories, 1e-9)
}

func TestCalculateRejectsNonPhysicalInput(t *testing.T) {
	valid := UserProfile{Age: 30, Gender: Male, HeightCm: 180, WeightKg: 80, ActivityLevel: 1.55, FitnessGoal: Maintain}

	cases := map[string]func(p *UserProfile){
		"zero age":        func(p *UserProfile) { p.Age = 0 },
		"negative age":    func(p *UserProfile) { p.Age = -4 },
		"zero weight":     func(p *UserProfile) { p.WeightKg = 0 },
		"negative weight": func(p *UserProfile) { p.WeightKg = -80 },
		"zero height":     func(p *UserProfile) { p.HeightCm = 0 },
		"bad gender":      func(p *UserProfile) { p.Gender = "other" },
		"bad multiplier":  func(p *UserProfile) { p.ActivityLevel = 1.6 },
		"unknown goal":    func(p *UserProfile) { p.FitnessGoal = "bulk_forever" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			_, err := Calculate(p)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	_, err := Calculate(valid)
	assert.NoError(t, err)
}

func TestMacroSplitEnergyBalances(t *testing.T) {
	for _, goal := range []Goal{LoseWeight, GainMuscle, Maintain, AthleticPerformance} {
		m := MacroSplit(2500, goal)
		kcal := m.ProteinG*4 + m.CarbsG*4 + m.FatG*9
		assert.InDelta(t, 2500, kcal, 1e-6, "goal %s", goal)
	}
}

func TestLookupActivityLevel(t *testing.T) {
	m, ok := LookupActivityLevel("Very_Active")
	require.True(t, ok)
	assert.Equal(t, 1.9, m)

	_, ok = LookupActivityLevel("couch")
	assert.False(t, ok)
}
