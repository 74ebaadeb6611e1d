// Package safety post-processes generated plans for obviously unsafe advice.
package safety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PlanKind selects the plan-specific hardening rules.
type PlanKind string

const (
	Workout PlanKind = "workout"
	Meal    PlanKind = "meal"
)

const (
	MaxSets     = 8
	MaxReps     = 30
	MinCalories = 1200

	Disclaimer = "\n\nDisclaimer: This AI-generated plan is for educational purposes and is not medical advice. " +
		"Consult a qualified professional before starting any program, especially if you have existing conditions."
)

// Result is the filtered text plus the reasons it was flagged, if any.
type Result struct {
	SafeText string   `json:"safeText"`
	Flagged  bool     `json:"flagged"`
	Reasons  []string `json:"reasons"`
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)steroid`),
	regexp.MustCompile(`(?i)anabolic`),
	regexp.MustCompile(`(?i)sar[mn]`),
	regexp.MustCompile(`(?i)no\s*rest\s*days`),
	regexp.MustCompile(`(?i)max\s*out\s*every\s*set`),
	regexp.MustCompile(`(?i)starv(e|ation)`),
	regexp.MustCompile(`(?i)dry\s*fast(ing)?\s*\d{2,}`),
	regexp.MustCompile(`(?i)no\s*water`),
	regexp.MustCompile(`(?i)illegal`),
	regexp.MustCompile(`(?i)self\s*-?harm`),
}

var (
	substancePattern = regexp.MustCompile(`(?i)steroids?|anabolic|sarms?`)
	volumePattern    = regexp.MustCompile(`(?i)(\d{2,})\s*(sets|reps)`)

	// Only figures that read as the daily total are floored; per-meal and
	// per-item calories are legitimately below the daily minimum. A bare
	// "total" or "target" is usually a meal subtotal, so it must be qualified.
	dailyCaloriesBefore = regexp.MustCompile(`(?i)(daily|per day|a day|each day|for the day|calorie target)([^\n\d]{0,24})(\d{2,5})\s*(k?cal|calories)`)
	dailyCaloriesAfter  = regexp.MustCompile(`(?i)(\d{2,5})\s*(k?cal|calories)(\s*(?:per day|a day|/\s*day|daily))`)
)

// Filter flags, redacts and hardens text. It never panics; on an internal
// failure it returns the input unflagged.
func Filter(text string, kind PlanKind) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{SafeText: text, Reasons: []string{}}
		}
	}()

	reasons := []string{}
	for _, re := range dangerousPatterns {
		if re.MatchString(text) {
			reasons = append(reasons, "Matched pattern: "+strings.TrimPrefix(re.String(), "(?i)"))
		}
	}

	safe := substancePattern.ReplaceAllString(text, "[unsafe-substance]")

	var extra []string
	if kind == Workout {
		safe, extra = clampVolume(safe)
	} else {
		safe, extra = enforceMinCalories(safe)
	}
	reasons = append(reasons, extra...)

	if !strings.Contains(strings.ToLower(safe), "disclaimer") {
		safe += Disclaimer
	}

	return Result{SafeText: safe, Flagged: len(reasons) > 0, Reasons: reasons}
}

func clampVolume(text string) (string, []string) {
	var reasons []string
	out := volumePattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := volumePattern.FindStringSubmatch(m)
		unit := sub[2]
		max := MaxReps
		if strings.EqualFold(unit, "sets") {
			max = MaxSets
		}
		val, err := strconv.Atoi(sub[1])
		if err == nil && val <= max {
			return m
		}
		reasons = append(reasons, fmt.Sprintf("Clamped %s %s to %d", sub[1], strings.ToLower(unit), max))
		return fmt.Sprintf("%d %s", max, unit)
	})
	return out, reasons
}

func enforceMinCalories(text string) (string, []string) {
	var reasons []string
	raise := func(n string) (string, bool) {
		val, err := strconv.Atoi(n)
		if err != nil || val >= MinCalories {
			return n, false
		}
		reasons = append(reasons, fmt.Sprintf("Raised daily calories from %d to %d", val, MinCalories))
		return strconv.Itoa(MinCalories), true
	}

	out := dailyCaloriesBefore.ReplaceAllStringFunc(text, func(m string) string {
		sub := dailyCaloriesBefore.FindStringSubmatch(m)
		n, changed := raise(sub[3])
		if !changed {
			return m
		}
		return sub[1] + sub[2] + n + " " + sub[4]
	})
	out = dailyCaloriesAfter.ReplaceAllStringFunc(out, func(m string) string {
		sub := dailyCaloriesAfter.FindStringSubmatch(m)
		n, changed := raise(sub[1])
		if !changed {
			return m
		}
		return n + " " + sub[2] + sub[3]
	})
	return out, reasons
}
