// Package app wires configuration into the running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"ai-fitness-planner/internal/cache"
	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"
	"ai-fitness-planner/internal/research"
	"ai-fitness-planner/internal/server"
	"ai-fitness-planner/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the application's dependencies.
type App struct {
	Config      *config.Config
	Log         *logger.Logger
	DB          *database.DB
	Registry    *llm.Registry
	Plans       *planner.PlanRepository
	Generations *planner.GenerationRepository
	Usage       *metrics.Store
	Metrics     *metrics.Collector
	Prometheus  *prometheus.Registry
	Research    *research.Client
	Bot         *telegram.Bot
	Planner     *planner.Planner

	closers []func() error
}

type options struct {
	telegram bool
}

type Option func(*options)

// WithoutTelegram skips the bot, so one-shot commands do not re-register the
// webhook.
func WithoutTelegram() Option {
	return func(o *options) { o.telegram = false }
}

// New opens storage, builds the provider registry and assembles the planner.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{telegram: true}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg, log := a.Config, a.Log

	var err error
	a.DB, err = database.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	a.Plans = planner.NewPlanRepository(a.DB)
	a.Generations = planner.NewGenerationRepository(a.DB)
	a.Usage = metrics.NewStore(a.DB)

	a.Prometheus = prometheus.NewRegistry()
	a.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewCollector(a.Prometheus)

	c, err := a.newCache(ctx)
	if err != nil {
		return err
	}

	a.Registry, err = llm.NewRegistryFromConfig(ctx, cfg, c)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	a.closers = append(a.closers, a.Registry.Close)
	if names := a.Registry.Names(); len(names) == 0 {
		log.Warn("no LLM providers configured; plan generation will fail")
	} else {
		log.Info("LLM providers configured", "providers", names)
		if def := llm.ProviderName(cfg.LLM.DefaultProvider); !a.Registry.Has(def) {
			log.Warn("LLM_PROVIDER has no credentials; the first fan-out provider will synthesize", "default", def)
		}
	}

	popts := []planner.Option{
		planner.WithLogger(log),
		planner.WithMetrics(a.Metrics),
		planner.WithUsageRecorder(a.Usage),
	}

	if cfg.Research.Enabled {
		a.Research = research.NewClient(cfg.Research)
		popts = append(popts, planner.WithEvidence(research.NewEvidence(a.Research, research.DefaultEvidenceResults)))
	}

	if o.telegram && cfg.Telegram.BotToken != "" {
		a.Bot, err = telegram.NewBot(cfg.Telegram, a.Usage, a.dataDir(), log)
		if err != nil {
			return err
		}
		popts = append(popts, planner.WithNotifier(a.Bot))
	}

	a.Planner = planner.NewPlanner(a.Registry, a.Plans, a.Generations, planner.ConfigFrom(cfg.LLM), popts...)
	return nil
}

func (a *App) newCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.Config.Cache
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		a.Log.Info("LLM response cache enabled", "backend", "memory", "ttl", cfg.TTL)
		return cache.NewMemory(), nil
	}
	r, err := cache.NewRedisFromAddr(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	a.Log.Info("LLM response cache enabled", "backend", "redis", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
	return r, nil
}

// Router builds the HTTP handler over the wired dependencies.
func (a *App) Router() *gin.Engine {
	deps := server.Deps{
		Config:    a.Config,
		Log:       a.Log,
		Planner:   a.Planner,
		Plans:     a.Plans,
		Providers: a.Registry,
		Metrics:   a.Metrics,
		Gatherer:  a.Prometheus,
	}
	if a.Research != nil {
		deps.Research = a.Research
	}
	if a.Bot != nil {
		deps.Webhook = a.Bot
	}
	return server.NewRouter(deps)
}

func (a *App) dataDir() string {
	if a.Config.Database.Driver != database.DriverSQLite {
		return ""
	}
	return filepath.Dir(a.Config.Database.Path)
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
