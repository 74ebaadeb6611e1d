// Package server exposes the planner over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"
	"ai-fitness-planner/internal/research"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "ai-fitness-planner"

type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req planner.PlanRequest) (*planner.Result, error)
}

type PlanReader interface {
	GetPlan(ctx context.Context, id string) (*planner.Plan, error)
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]planner.Plan, error)
}

type ResearchSearcher interface {
	Lookup(ctx context.Context, q research.Query) ([]research.Article, error)
}

type ProviderLister interface {
	Names() []llm.ProviderName
}

// Deps are the collaborators the router serves. Research, Webhook and
// Gatherer are optional.
type Deps struct {
	Config    *config.Config
	Log       *logger.Logger
	Planner   PlanGenerator
	Plans     PlanReader
	Providers ProviderLister
	Research  ResearchSearcher
	Webhook   http.Handler
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
}

type handler struct {
	deps Deps
	log  *logger.Logger
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	h := &handler{deps: deps, log: deps.Log.With("component", "server")}
	cfg := deps.Config

	r := gin.New()
	// Only listed proxies may set X-Forwarded-For, otherwise the per-client
	// rate limit keys on a header the caller controls.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		h.log.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		gin.CustomRecovery(h.recover),
		otelgin.Middleware(serviceName),
		RequestID(),
		RequestLogger(h.log),
		Metrics(deps.Metrics),
		CORS(cfg.CORSAllowedOrigins),
	)

	r.GET("/health", h.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.Webhook != nil {
		r.POST("/telegram/webhook", gin.WrapH(deps.Webhook))
	}

	r.POST("/targets", h.targets)
	if deps.Research != nil {
		r.GET("/research", h.research)
	}

	api := r.Group("/")
	if cfg.JWTSecret != "" {
		api.Use(BearerAuth(cfg.JWTSecret))
	}
	limiter := NewClientLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, 10*time.Minute)
	api.POST("/plan/ensemble", RateLimit(limiter), h.ensemblePlan)
	api.GET("/plans/:id", h.getPlan)
	api.GET("/users/:userId/plans", h.listPlans)

	return r
}
