// Package planner runs the ensemble plan generation workflow: it fans one
// prompt out to several providers, merges the answers with a synthesizer,
// filters the result and persists it.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"ai-fitness-planner/internal/apperr"
	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/safety"
	"ai-fitness-planner/internal/shared"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ai-fitness-planner/planner")

// Request bounds.
const (
	MaxUserIDLength = 128
	MaxProviders    = 5
	MaxModelLength  = 256

	auditPromptRunes   = 500
	auditResponseRunes = 1000
	notifyTimeout      = 10 * time.Second
)

// Generator is the provider registry as seen by the planner.
type Generator interface {
	Generate(ctx context.Context, name llm.ProviderName, req llm.Request) (llm.ContentResponse, error)
	Has(name llm.ProviderName) bool
	Names() []llm.ProviderName
}

type PlanStore interface {
	SavePlan(ctx context.Context, plan *Plan) error
}

type GenerationStore interface {
	SaveGeneration(ctx context.Context, rec *GenerationRecord) error
}

// UsageRecorder persists per-call execution metrics.
type UsageRecorder interface {
	RecordCall(ctx context.Context, meta shared.CallMeta) error
}

// EvidenceSource looks up research citations for a plan.
type EvidenceSource interface {
	Evidence(ctx context.Context, planType PlanType, goal fitness.Goal) ([]Citation, error)
}

// Notifier is told about plans the safety filter flagged.
type Notifier interface {
	PlanFlagged(ctx context.Context, plan *Plan) error
}

// Config is the provider selection and timeout policy.
type Config struct {
	DefaultProvider  llm.ProviderName
	Synthesizer      llm.ProviderName
	Timeout          time.Duration
	SynthesisTimeout time.Duration
}

// ConfigFrom maps the LLM section of the application config.
func ConfigFrom(cfg config.LLMConfig) Config {
	return Config{
		DefaultProvider:  llm.ProviderName(cfg.DefaultProvider),
		Synthesizer:      llm.ProviderName(cfg.Synthesizer),
		Timeout:          cfg.Timeout,
		SynthesisTimeout: cfg.SynthesisTimeout,
	}
}

// Planner handles the generation of ensemble plans.
type Planner struct {
	gen         Generator
	plans       PlanStore
	generations GenerationStore
	cfg         Config

	log      *logger.Logger
	metrics  *metrics.Collector
	usage    UsageRecorder
	evidence EvidenceSource
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Planner)

func WithLogger(l *logger.Logger) Option {
	return func(p *Planner) { p.log = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(p *Planner) { p.metrics = c }
}

func WithUsageRecorder(u UsageRecorder) Option {
	return func(p *Planner) { p.usage = u }
}

func WithEvidence(e EvidenceSource) Option {
	return func(p *Planner) { p.evidence = e }
}

func WithNotifier(n Notifier) Option {
	return func(p *Planner) { p.notifier = n }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// NewPlanner creates a new Planner instance.
func NewPlanner(gen Generator, plans PlanStore, generations GenerationStore, cfg Config, opts ...Option) *Planner {
	p := &Planner{
		gen:         gen,
		plans:       plans,
		generations: generations,
		cfg:         cfg,
		log:         logger.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GeneratePlan runs one request through every stage and returns the stored
// plan. Failures are *apperr.Error values with distinct codes.
func (p *Planner) GeneratePlan(ctx context.Context, req PlanRequest) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "planner.GeneratePlan", trace.WithAttributes(
		attribute.String("plan.type", string(req.PlanType)),
	))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome, _, _ = apperr.Public(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		p.metrics.ObservePlan(string(req.PlanType), outcome, time.Since(start))
		span.End()
	}()

	log := p.log.With("user_id", req.UserID, "plan_type", req.PlanType)
	stage := func(s Stage) {
		span.AddEvent(string(s))
		log.Debug("plan stage", "stage", s)
	}

	stage(StageReceived)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	stage(StageCalculating)
	profile := req.Profile.Normalize()
	targets, err := fitness.Calculate(profile)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	specs, err := p.resolveProviders(req.Providers)
	if err != nil {
		return nil, err
	}
	synth, err := p.resolveSynthesizer(req.Synthesizer, specs)
	if err != nil {
		return nil, err
	}

	stage(StagePrompting)
	prompt, err := BuildPlanPrompt(req.PlanType, profile, targets, p.lookupEvidence(ctx, log, req.PlanType, profile.FitnessGoal))
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	stage(StageFanningOut)
	outputs, metas := p.runFanOut(ctx, specs, prompt)
	if len(outputs) == 0 {
		p.recordUsage(ctx, log, metas)
		return nil, apperr.Provider(apperr.CodeAllProvidersFailed,
			fmt.Sprintf("all %d providers failed to generate a plan", len(specs)), errors.Join(callErrors(metas)...))
	}
	log.Info("fan-out complete", "succeeded", len(outputs), "requested", len(specs))

	stage(StageSynthesizing)
	synthResp, synthMeta, err := p.runSynthesis(ctx, req.PlanType, synth, outputs)
	metas = append(metas, synthMeta)
	if err != nil {
		p.recordUsage(ctx, log, metas)
		log.Error("synthesis failed", "synthesizer", synth.Provider, "error", err)
		return nil, apperr.Provider(apperr.CodeSynthesisFailed,
			fmt.Sprintf("synthesizer %s failed to merge the provider outputs", synth.Provider), err)
	}

	stage(StageFiltering)
	filtered := safety.Filter(synthResp.Content, req.PlanType.safetyKind())
	if filtered.Flagged {
		log.Warn("plan flagged by safety filter", "reasons", filtered.Reasons)
	}

	stage(StagePersisting)
	now := p.now().UTC()
	sources := sourcesOf(outputs)
	plan := &Plan{
		ID:             p.newID(),
		UserID:         req.UserID,
		Name:           fmt.Sprintf("%s Plan (Ensemble) - %s", req.PlanType.Title(), now.Format("2006-01-02")),
		PlanType:       req.PlanType,
		GenerationType: req.PlanType.GenerationType(),
		Content:        filtered.SafeText,
		Flagged:        filtered.Flagged,
		Reasons:        nonNil(filtered.Reasons),
		Targets:        targets,
		Sources:        sources,
		Synthesizer:    synth,
		CreatedAt:      now,
	}
	if err := p.plans.SavePlan(ctx, plan); err != nil {
		p.recordUsage(ctx, log, metas)
		log.Error("failed to save plan", "error", err)
		return nil, apperr.Storage("the plan was generated but could not be saved", err)
	}

	rec := &GenerationRecord{
		ID:             p.newID(),
		PlanID:         plan.ID,
		UserID:         req.UserID,
		GenerationType: plan.GenerationType,
		Providers:      specsOf(outputs),
		Synthesizer:    synth,
		Prompt:         shared.Truncate(prompt, auditPromptRunes),
		Response:       shared.Truncate(filtered.SafeText, auditResponseRunes),
		TokensUsed:     tokensUsed(outputs, synthResp, filtered.SafeText),
		Flagged:        filtered.Flagged,
		CreatedAt:      now,
	}
	if err := p.generations.SaveGeneration(ctx, rec); err != nil {
		log.Warn("failed to save generation audit record", "plan_id", plan.ID, "error", err)
	}
	p.recordUsage(ctx, log, metas)

	if plan.Flagged {
		p.notifyFlagged(ctx, log, plan)
	}

	stage(StageResponded)
	log.Info("plan generated", "plan_id", plan.ID, "synthesizer", synth.Provider, "flagged", plan.Flagged)

	return &Result{
		Plan:        plan,
		Sources:     sources,
		Synthesizer: synth,
		Flagged:     plan.Flagged,
		Reasons:     plan.Reasons,
		Targets:     targets.Rounded(),
	}, nil
}

func validateRequest(req PlanRequest) error {
	if req.UserID == "" {
		return apperr.Validation("userId is required")
	}
	if utf8.RuneCountInString(req.UserID) > MaxUserIDLength {
		return apperr.Validationf("userId must be at most %d characters", MaxUserIDLength)
	}
	if !req.PlanType.Valid() {
		return apperr.Validationf("planType must be workout or meal, got %q", req.PlanType)
	}
	if len(req.Providers) > MaxProviders {
		return apperr.Validationf("at most %d providers may be requested", MaxProviders)
	}
	for _, s := range req.Providers {
		if err := validateSpec(s); err != nil {
			return err
		}
	}
	if req.Synthesizer != nil {
		if err := validateSpec(*req.Synthesizer); err != nil {
			return err
		}
	}
	return nil
}

func validateSpec(s ProviderSpec) error {
	if !llm.Known(s.Provider) {
		return apperr.Validationf("unknown provider %q", s.Provider)
	}
	if len(s.Model) > MaxModelLength {
		return apperr.Validationf("model for %s must be at most %d characters", s.Provider, MaxModelLength)
	}
	return nil
}

// resolveProviders picks the fan-out set. An explicit list is deduplicated
// in order; otherwise every configured provider is used, then the default.
// Nothing here touches the network.
func (p *Planner) resolveProviders(requested []ProviderSpec) ([]ProviderSpec, error) {
	if len(requested) > 0 {
		seen := make(map[ProviderSpec]bool, len(requested))
		specs := make([]ProviderSpec, 0, len(requested))
		for _, s := range requested {
			if seen[s] {
				continue
			}
			seen[s] = true
			if !p.gen.Has(s.Provider) {
				return nil, apperr.Configuration(fmt.Sprintf("provider %s is not configured", s.Provider), true, &llm.ConfigError{Provider: s.Provider})
			}
			specs = append(specs, s)
		}
		return specs, nil
	}

	var specs []ProviderSpec
	for _, name := range p.gen.Names() {
		specs = append(specs, ProviderSpec{Provider: name})
	}
	if len(specs) > 0 {
		return specs, nil
	}

	def := p.cfg.DefaultProvider
	if !p.gen.Has(def) {
		return nil, apperr.Configuration("no LLM provider is configured", false, &llm.ConfigError{Provider: def})
	}
	return []ProviderSpec{{Provider: def}}, nil
}

// resolveSynthesizer prefers the request, then the configured synthesizer,
// then claude when it is part of the fan-out, then the default provider, and
// finally the first fan-out provider when the default has no credentials.
func (p *Planner) resolveSynthesizer(requested *ProviderSpec, specs []ProviderSpec) (ProviderSpec, error) {
	if requested != nil {
		if !p.gen.Has(requested.Provider) {
			return ProviderSpec{}, apperr.Configuration(fmt.Sprintf("synthesizer %s is not configured", requested.Provider), true, &llm.ConfigError{Provider: requested.Provider})
		}
		return *requested, nil
	}

	if name := p.cfg.Synthesizer; name != "" {
		if !p.gen.Has(name) {
			return ProviderSpec{}, apperr.Configuration(fmt.Sprintf("configured synthesizer %s has no credentials", name), false, &llm.ConfigError{Provider: name})
		}
		return ProviderSpec{Provider: name}, nil
	}

	for _, s := range specs {
		if s.Provider == llm.Claude {
			return s, nil
		}
	}

	if def := p.cfg.DefaultProvider; p.gen.Has(def) {
		return ProviderSpec{Provider: def}, nil
	}
	// specs is never empty here: resolveProviders fails first
	return specs[0], nil
}

func (p *Planner) lookupEvidence(ctx context.Context, log *logger.Logger, planType PlanType, goal fitness.Goal) []Citation {
	if p.evidence == nil {
		return nil
	}
	citations, err := p.evidence.Evidence(ctx, planType, goal)
	if err != nil {
		log.Warn("evidence lookup failed, continuing without it", "error", err)
		return nil
	}
	return citations
}

func (p *Planner) recordUsage(ctx context.Context, log *logger.Logger, metas []shared.CallMeta) {
	if p.usage == nil {
		return
	}
	for _, m := range metas {
		if err := p.usage.RecordCall(ctx, m); err != nil {
			log.Warn("failed to record execution metric", "provider", m.Provider, "error", err)
		}
	}
}

func (p *Planner) notifyFlagged(ctx context.Context, log *logger.Logger, plan *Plan) {
	if p.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := p.notifier.PlanFlagged(ctx, plan); err != nil {
			log.Warn("failed to notify admin about flagged plan", "plan_id", plan.ID, "error", err)
		}
	}()
}

func callErrors(metas []shared.CallMeta) []error {
	var errs []error
	for _, m := range metas {
		if m.Err != nil {
			errs = append(errs, m.Err)
		}
	}
	return errs
}

func specsOf(outputs []ProviderOutput) []ProviderSpec {
	specs := make([]ProviderSpec, len(outputs))
	for i, o := range outputs {
		specs[i] = o.Spec
	}
	return specs
}

// tokensUsed sums the provider-reported tokens. When no provider reports
// usage the length of the final text stands in.
func tokensUsed(outputs []ProviderOutput, synth llm.ContentResponse, finalText string) int {
	total := synth.Usage.Total()
	for _, o := range outputs {
		total += o.Usage.Total()
	}
	if total == 0 {
		return utf8.RuneCountInString(finalText)
	}
	return total
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
