package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"ai-fitness-planner/internal/app"
	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/fitness"
	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"
	"ai-fitness-planner/internal/research"

	"github.com/spf13/cobra"
)

// env is what commands need from the outside world.
type env struct {
	loadConfig func() (*config.Config, error)
	newLogger  func(cfg *config.Config) (*logger.Logger, error)
}

func defaultEnv() env {
	return env{
		loadConfig: config.NewFromEnv,
		newLogger: func(cfg *config.Config) (*logger.Logger, error) {
			return logger.New(cfg.Env, cfg.LogLevel)
		},
	}
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:          "ai-fitness-planner",
		Short:        "Operator tools for the ensemble fitness planner",
		SilenceUsage: true,
	}
	root.AddCommand(
		newTargetsCmd(),
		newPlanCmd(e),
		newUsageCmd(e),
		newUsageCleanupCmd(e),
		newResearchCmd(e),
		newMigrateCmd(e),
	)
	return root
}

type profileFlags struct {
	age      int
	gender   string
	height   float64
	weight   float64
	activity string
	goal     string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&p.age, "age", 0, "age in years")
	f.StringVar(&p.gender, "gender", "", "male or female")
	f.Float64Var(&p.height, "height", 0, "height in cm")
	f.Float64Var(&p.weight, "weight", 0, "weight in kg")
	f.StringVar(&p.activity, "activity", "moderate", "activity multiplier (1.2-1.9) or level name")
	f.StringVar(&p.goal, "goal", string(fitness.Maintain), "lose_weight, gain_muscle, maintain or athletic_performance")
	for _, name := range []string{"age", "gender", "height", "weight"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (p *profileFlags) profile() (fitness.UserProfile, error) {
	multiplier, err := strconv.ParseFloat(p.activity, 64)
	if err != nil {
		var ok bool
		if multiplier, ok = fitness.LookupActivityLevel(p.activity); !ok {
			return fitness.UserProfile{}, fmt.Errorf("unknown activity level %q", p.activity)
		}
	}
	return fitness.UserProfile{
		Age:           p.age,
		Gender:        fitness.Gender(p.gender),
		HeightCm:      p.height,
		WeightKg:      p.weight,
		ActivityLevel: multiplier,
		FitnessGoal:   fitness.Goal(p.goal),
	}, nil
}

func newTargetsCmd() *cobra.Command {
	var pf profileFlags
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Print calorie and macro targets for a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pf.profile()
			if err != nil {
				return err
			}
			targets, err := fitness.Calculate(p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), targets.Rounded())
		},
	}
	pf.register(cmd)
	return cmd
}

func newPlanCmd(e env) *cobra.Command {
	var (
		pf          profileFlags
		userID      string
		planType    string
		providers   []string
		synthesizer string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate an ensemble plan and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pf.profile()
			if err != nil {
				return err
			}
			req := planner.PlanRequest{UserID: userID, PlanType: planner.PlanType(planType), Profile: p}
			for _, raw := range providers {
				req.Providers = append(req.Providers, parseSpec(raw))
			}
			if synthesizer != "" {
				s := parseSpec(synthesizer)
				req.Synthesizer = &s
			}

			return withApp(cmd.Context(), e, func(a *app.App) error {
				res, err := a.Planner.GeneratePlan(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&userID, "user", "", "user id the plan belongs to")
	f.StringVar(&planType, "type", string(planner.Workout), "workout or meal")
	f.StringSliceVar(&providers, "provider", nil, "provider[:model] to fan out to; repeatable")
	f.StringVar(&synthesizer, "synthesizer", "", "provider[:model] that merges the drafts")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// parseSpec splits "provider:model". Only the first colon separates, since
// model ids may contain colons.
func parseSpec(raw string) planner.ProviderSpec {
	name, model, _ := strings.Cut(strings.TrimSpace(raw), ":")
	return planner.ProviderSpec{Provider: llm.ProviderName(strings.ToLower(name)), Model: model}
}

func printResult(w io.Writer, res *planner.Result) error {
	fmt.Fprintf(w, "%s (%s)\n", res.Plan.Name, res.Plan.ID)
	fmt.Fprintf(w, "Synthesizer: %s\n", res.Synthesizer)
	for _, s := range res.Sources {
		fmt.Fprintf(w, "Source: %s\n", planner.ProviderSpec{Provider: s.Provider, Model: s.Model})
	}
	if res.Flagged {
		fmt.Fprintf(w, "Flagged: %s\n", strings.Join(res.Reasons, "; "))
	}
	_, err := fmt.Fprintf(w, "\n%s\n", res.Plan.Content)
	return err
}

func newUsageCmd(e env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show daily LLM token usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(e, func(db *database.DB) error {
				usage, err := metrics.NewStore(db).GetDailyUsage(cmd.Context(), days)
				if err != nil {
					return err
				}
				return printUsage(cmd.OutOrStdout(), usage)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to report")
	return cmd
}

func printUsage(w io.Writer, usage []metrics.DailyUsage) error {
	if len(usage) == 0 {
		_, err := fmt.Fprintln(w, "No usage recorded yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPROMPT\tCOMPLETION\tCALLS\tFAILED")
	for _, d := range usage {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution, d.Failures)
	}
	return tw.Flush()
}

func newUsageCleanupCmd(e env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "usage-cleanup",
		Short: "Remove execution metrics older than --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			return withDB(e, func(db *database.DB) error {
				n, err := metrics.NewStore(db).Cleanup(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old metric records.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "keep records for the last N days")
	return cmd
}

func newResearchCmd(e env) *cobra.Command {
	q := research.Query{}
	cmd := &cobra.Command{
		Use:   "research [term]",
		Short: "Search PubMed and print matching articles",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && q.Related == "" {
				return errors.New("a search term or --related is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			q.Term = strings.Join(args, " ")
			articles, err := research.NewClient(cfg.Research).Lookup(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), articles)
		},
	}
	cmd.Flags().IntVar(&q.Max, "max", 5, "maximum number of articles")
	cmd.Flags().BoolVar(&q.Abstracts, "abstracts", false, "fetch full records with abstracts")
	cmd.Flags().StringVar(&q.Related, "related", "", "list articles similar to this PMID instead of searching")
	return cmd
}

func newMigrateCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if err := database.RunMigrations(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func withDB(e env, fn func(*database.DB) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func withApp(ctx context.Context, e env, fn func(*app.App) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	log, err := e.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(ctx, cfg, log, app.WithoutTelegram())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
