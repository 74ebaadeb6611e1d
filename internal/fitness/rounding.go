package fitness

import "math"

// RoundedTargets is the presentation form of Targets.
type RoundedTargets struct {
	BMR          int     `json:"bmr"`
	TDEE         int     `json:"tdee"`
	Calories     int     `json:"calories"`
	ProteinG     int     `json:"protein"`
	CarbsG       int     `json:"carbs"`
	FatG         int     `json:"fat"`
	BMI          float64 `json:"bmi"`
	WaterGlasses int     `json:"waterGlasses"`
}

// Rounded rounds every figure for display. Nothing upstream rounds.
func (t Targets) Rounded() RoundedTargets {
	return RoundedTargets{
		BMR:          roundInt(t.BMR),
		TDEE:         roundInt(t.TDEE),
		Calories:     roundInt(t.Calories),
		ProteinG:     roundInt(t.Macros.ProteinG),
		CarbsG:       roundInt(t.Macros.CarbsG),
		FatG:         roundInt(t.Macros.FatG),
		BMI:          math.Round(t.BMI*10) / 10,
		WaterGlasses: t.WaterGlasses,
	}
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
