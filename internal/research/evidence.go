package research

import (
	"context"

	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/planner"
)

// DefaultEvidenceResults is how many citations are added to a prompt.
const DefaultEvidenceResults = 3

var workoutTerms = map[fitness.Goal]string{
	fitness.GainMuscle:          "resistance training volume hypertrophy",
	fitness.LoseWeight:          "resistance training fat loss",
	fitness.Maintain:            "resistance training maintenance frequency",
	fitness.AthleticPerformance: "strength training athletic performance",
}

var mealTerms = map[fitness.Goal]string{
	fitness.GainMuscle:          "protein intake muscle hypertrophy",
	fitness.LoseWeight:          "caloric deficit protein fat loss",
	fitness.Maintain:            "dietary protein energy balance",
	fitness.AthleticPerformance: "sports nutrition performance carbohydrate",
}

// Evidence adapts the client to the planner's evidence lookup.
type Evidence struct {
	client     *Client
	maxResults int
}

func NewEvidence(c *Client, maxResults int) *Evidence {
	if maxResults <= 0 {
		maxResults = DefaultEvidenceResults
	}
	return &Evidence{client: c, maxResults: maxResults}
}

// Term is the search query used for a plan type and goal.
func Term(planType planner.PlanType, goal fitness.Goal) string {
	terms := workoutTerms
	if planType == planner.Meal {
		terms = mealTerms
	}
	if t, ok := terms[goal]; ok {
		return t
	}
	return terms[fitness.Maintain]
}

func (e *Evidence) Evidence(ctx context.Context, planType planner.PlanType, goal fitness.Goal) ([]planner.Citation, error) {
	articles, err := e.client.SearchAndFetch(ctx, Term(planType, goal), e.maxResults)
	if err != nil {
		return nil, err
	}

	citations := make([]planner.Citation, 0, len(articles))
	for _, a := range articles {
		citations = append(citations, planner.Citation{
			PMID:    a.PMID,
			Title:   a.Title,
			Journal: a.Journal,
			Year:    a.Year,
		})
	}
	return citations, nil
}
