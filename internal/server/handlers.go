package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ai-fitness-planner/internal/apperr"
	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"
	"ai-fitness-planner/internal/research"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit   = 10
	maxListLimit       = 50
	defaultResearchMax = 5
	maxResearchMax     = 20
)

type profileRequest struct {
	Age           int     `json:"age" binding:"required"`
	Gender        string  `json:"gender" binding:"required"`
	Height        float64 `json:"height" binding:"required"`
	Weight        float64 `json:"weight" binding:"required"`
	ActivityLevel float64 `json:"activityLevel" binding:"required"`
	FitnessGoal   string  `json:"fitnessGoal" binding:"required"`
}

func (p profileRequest) toProfile() fitness.UserProfile {
	return fitness.UserProfile{
		Age:           p.Age,
		Gender:        fitness.Gender(p.Gender),
		HeightCm:      p.Height,
		WeightKg:      p.Weight,
		ActivityLevel: p.ActivityLevel,
		FitnessGoal:   fitness.Goal(p.FitnessGoal),
	}
}

type ensembleRequest struct {
	UserID      string                 `json:"userId" binding:"required,max=128"`
	PlanType    string                 `json:"planType" binding:"required,oneof=workout meal"`
	Providers   []planner.ProviderSpec `json:"providers" binding:"max=5"`
	Synthesizer *planner.ProviderSpec  `json:"synthesizer"`
	UserProfile profileRequest         `json:"userProfile"`
}

type ensembleResponse struct {
	Success     bool                   `json:"success"`
	Plan        *planner.Plan          `json:"plan"`
	Sources     []planner.Source       `json:"sources"`
	Synthesizer planner.ProviderSpec   `json:"synthesizer"`
	Flagged     bool                   `json:"flagged"`
	Reasons     []string               `json:"reasons,omitempty"`
	Targets     fitness.RoundedTargets `json:"targets"`
	Message     string                 `json:"message"`
}

func (h *handler) ensemblePlan(c *gin.Context) {
	var body ensembleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	// Omitting providers selects the defaults; an explicit empty list does not.
	if body.Providers != nil && len(body.Providers) == 0 {
		writeError(c, apperr.Validation("providers must not be empty; omit it to use the defaults"))
		return
	}
	if err := authorize(c, body.UserID); err != nil {
		writeError(c, err)
		return
	}

	res, err := h.deps.Planner.GeneratePlan(c.Request.Context(), planner.PlanRequest{
		UserID:      body.UserID,
		PlanType:    planner.PlanType(body.PlanType),
		Providers:   body.Providers,
		Synthesizer: body.Synthesizer,
		Profile:     body.UserProfile.toProfile(),
	})
	if err != nil {
		h.logFailure(c, "ensemble plan failed", err)
		writeError(c, err)
		return
	}

	resp := ensembleResponse{
		Success:     true,
		Plan:        res.Plan,
		Sources:     res.Sources,
		Synthesizer: res.Synthesizer,
		Flagged:     res.Flagged,
		Targets:     res.Targets,
		Message:     "Ensemble plan generated successfully",
	}
	if res.Flagged {
		resp.Reasons = res.Reasons
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

func (h *handler) targets(c *gin.Context) {
	var body profileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}
	targets, err := fitness.Calculate(body.toProfile())
	if err != nil {
		writeError(c, apperr.Validation(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": targets.Rounded()})
}

func (h *handler) getPlan(c *gin.Context) {
	plan, err := h.deps.Plans.GetPlan(c.Request.Context(), c.Param("id"))
	if errors.Is(err, planner.ErrPlanNotFound) {
		writeError(c, apperr.NotFound("plan not found"))
		return
	}
	if err != nil {
		h.logFailure(c, "failed to load plan", err)
		writeError(c, apperr.Storage("failed to load plan", err))
		return
	}
	if err := authorize(c, plan.UserID); err != nil {
		// do not reveal that the id exists
		writeError(c, apperr.NotFound("plan not found"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, plan)
}

func (h *handler) listPlans(c *gin.Context) {
	userID := c.Param("userId")
	if err := authorize(c, userID); err != nil {
		writeError(c, err)
		return
	}
	limit, err := boundedInt(c.Query("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		writeError(c, apperr.Validationf("limit: %v", err))
		return
	}

	plans, err := h.deps.Plans.ListRecentByUserID(c.Request.Context(), userID, limit)
	if err != nil {
		h.logFailure(c, "failed to list plans", err)
		writeError(c, apperr.Storage("failed to list plans", err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

var pmidPattern = regexp.MustCompile(`^\d{1,10}$`)

// research serves either a term search (q) or similar articles of a PMID
// (related). abstracts=true switches from esummary to full efetch records.
func (h *handler) research(c *gin.Context) {
	q := research.Query{
		Term:    strings.TrimSpace(c.Query("q")),
		Related: strings.TrimSpace(c.Query("related")),
	}
	switch {
	case q.Related != "" && !pmidPattern.MatchString(q.Related):
		writeError(c, apperr.Validation("related must be a PMID"))
		return
	case q.Term == "" && q.Related == "":
		writeError(c, apperr.Validation("q or related is required"))
		return
	}
	limit, err := boundedInt(c.Query("max"), defaultResearchMax, maxResearchMax)
	if err != nil {
		writeError(c, apperr.Validationf("max: %v", err))
		return
	}
	q.Max = limit
	if raw := c.Query("abstracts"); raw != "" {
		if q.Abstracts, err = strconv.ParseBool(raw); err != nil {
			writeError(c, apperr.Validation("abstracts must be a boolean"))
			return
		}
	}

	articles, err := h.deps.Research.Lookup(c.Request.Context(), q)
	if err != nil {
		h.logFailure(c, "research lookup failed", err)
		writeError(c, apperr.New(apperr.KindProvider, "research_failed", http.StatusBadGateway, "research lookup failed", err))
		return
	}
	if articles == nil {
		articles = []research.Article{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *handler) health(c *gin.Context) {
	var dataDir string
	if h.deps.Config.Database.Driver == database.DriverSQLite {
		dataDir = filepath.Dir(h.deps.Config.Database.Path)
	}

	providers := []string{}
	if h.deps.Providers != nil {
		for _, p := range h.deps.Providers.Names() {
			providers = append(providers, string(p))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": providers,
		"system":    metrics.GetSysHealth(dataDir),
	})
}

func (h *handler) logFailure(c *gin.Context, msg string, err error) {
	fields := []interface{}{"request_id", c.GetString(ctxRequestID), "error", err}
	if apperr.StatusOf(err) >= http.StatusInternalServerError {
		h.log.Error(msg, fields...)
		return
	}
	h.log.Warn(msg, fields...)
}

func boundedInt(raw string, def, upper int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	if n > upper {
		n = upper
	}
	return n, nil
}
