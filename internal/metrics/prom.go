package metrics

import (
	"strconv"
	"time"

	"ai-fitness-planner/internal/shared"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fitness_planner"

// Collector exposes provider, plan and HTTP metrics to prometheus.
// A nil *Collector is valid and records nothing.
type Collector struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerTokens  *prometheus.CounterVec
	plans           *prometheus.CounterVec
	planDuration    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
}

// NewCollector registers the metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider calls by role and outcome",
			},
			[]string{"provider", "role", "outcome"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Wall-clock duration of provider calls",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"provider", "role"},
		),
		providerTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_tokens_total",
				Help:      "Tokens reported by providers",
			},
			[]string{"provider", "kind"},
		),
		plans: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_total",
				Help:      "Ensemble plan requests by outcome",
			},
			[]string{"plan_type", "outcome"},
		),
		planDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "End-to-end ensemble plan generation time",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
			},
			[]string{"plan_type"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveCall records one provider call.
func (c *Collector) ObserveCall(meta shared.CallMeta) {
	if c == nil {
		return
	}
	outcome := "success"
	switch {
	case meta.Err != nil && meta.Transient:
		outcome = "transient_failure"
	case meta.Err != nil:
		outcome = "failure"
	}
	c.providerCalls.WithLabelValues(meta.Provider, meta.Role, outcome).Inc()
	c.providerLatency.WithLabelValues(meta.Provider, meta.Role).Observe(meta.Latency.Seconds())
	if meta.Usage.PromptTokens > 0 {
		c.providerTokens.WithLabelValues(meta.Provider, "prompt").Add(float64(meta.Usage.PromptTokens))
	}
	if meta.Usage.CompletionTokens > 0 {
		c.providerTokens.WithLabelValues(meta.Provider, "completion").Add(float64(meta.Usage.CompletionTokens))
	}
}

// ObservePlan records a finished plan request. outcome is "success" or an
// error code.
func (c *Collector) ObservePlan(planType, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.plans.WithLabelValues(planType, outcome).Inc()
	c.planDuration.WithLabelValues(planType).Observe(d.Seconds())
}

func (c *Collector) ObserveRequest(method, route string, status int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
