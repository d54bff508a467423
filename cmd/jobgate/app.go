package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/jobgate/internal/config"
	"github.com/marcus/jobgate/internal/dedup"
	"github.com/marcus/jobgate/internal/llm"
	"github.com/marcus/jobgate/internal/observability"
	"github.com/marcus/jobgate/internal/pipeline"
	"github.com/marcus/jobgate/internal/stages"
	"github.com/marcus/jobgate/internal/store"
	"github.com/marcus/jobgate/internal/types"
)

// app bundles the wired collaborators every subcommand works with.
type app struct {
	cfg     *config.Config
	store   store.Store
	pg      *store.Postgres
	gate    *dedup.Gate
	orch    *pipeline.Orchestrator
	llm     llm.Client
	reviews *stages.MemoryReviewQueue
	printer *observability.Printer
}

// buildApp wires config, storage, the gate, and the orchestrator.
// DATABASE_URL selects Postgres; without it everything runs in memory,
// which is enough for one-shot CLI invocations.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		reviews: stages.NewMemoryReviewQueue(),
		printer: observability.NewPrinter(os.Stdout),
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		a.pg = pg
		a.store = pg
	} else {
		a.store = store.NewMemory()
	}

	gateOpts := []dedup.Option{
		dedup.WithWindow(time.Duration(cfg.Gate.WindowDays) * 24 * time.Hour),
	}

	var pipelineStages []pipeline.Stage
	if cfg.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.llm = client
		gateOpts = append(gateOpts, dedup.WithSemanticScorer(dedup.NewEmbeddingScorer(client)))
		pipelineStages = []pipeline.Stage{
			stages.NewScoreFit(client, cfg.Profile, cfg.Pipeline.MinFitScore),
			stages.NewGenerateDocuments(client, cfg.Profile),
			stages.NewQualityCheck(client, cfg.Pipeline.QualityPassScore, cfg.Pipeline.QualityBorderScore),
			stages.NewManualReview(a.reviews),
		}
	} else {
		// Without an API key the gate runs Tier 1 only and the pipeline
		// reduces to the manual sign-off.
		pipelineStages = []pipeline.Stage{
			stages.NewManualReview(a.reviews),
		}
	}

	a.gate = dedup.NewGate(a.store,
		dedup.Weights{
			Title:        cfg.Gate.TitleWeight,
			Organization: cfg.Gate.OrganizationWeight,
			Body:         cfg.Gate.BodyWeight,
			Location:     cfg.Gate.LocationWeight,
		},
		dedup.Thresholds{
			AutoMerge: cfg.Gate.AutoMergeThreshold,
			Ambiguous: cfg.Gate.AmbiguousThreshold,
		},
		gateOpts...,
	)

	orchOpts := []pipeline.OrchestratorOption{
		pipeline.WithRetryPolicy(pipeline.RetryPolicy{
			TransientAttempts:    cfg.Pipeline.TransientAttempts,
			UnclassifiedAttempts: cfg.Pipeline.UnclassifiedAttempts,
			BaseDelay:            time.Duration(cfg.Pipeline.BackoffBaseSeconds) * time.Second,
		}),
	}
	if verbose {
		orchOpts = append(orchOpts, pipeline.WithProgress(func(ev pipeline.ProgressEvent) {
			fmt.Printf("[%s] %s: %s\n", ev.RunID, ev.Stage, ev.Message)
		}))
	}

	orch, err := pipeline.NewOrchestrator(a.store, pipelineStages, orchOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}
	a.orch = orch

	return a, nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		defaults := config.Defaults()
		cfg = &defaults
		cfg.Verbose = verbose
		fillFromEnvDefaults(cfg)
	}
	if verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillFromEnvDefaults mirrors what LoadConfig does when no file is given.
func fillFromEnvDefaults(cfg *config.Config) {
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// cmdContext returns a context canceled on interrupt.
func cmdContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func gateWindow(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Gate.WindowDays) * 24 * time.Hour
}

// admitPosting runs one discovered posting through the gate, registering
// a pipeline run when it is distinct. Postings already stored are left
// untouched.
func (a *app) admitPosting(ctx context.Context, posting *types.Posting) (*types.DuplicateDecision, *types.PipelineRun, error) {
	if _, err := a.store.GetPosting(ctx, posting.Key); err == nil {
		return nil, nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to check posting %s: %w", posting.Key, err)
	}

	candidates, err := a.store.RecentPostings(ctx, time.Now().Add(-gateWindow(a.cfg)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	if err := a.store.CreatePosting(ctx, posting); err != nil {
		return nil, nil, fmt.Errorf("failed to store posting %s: %w", posting.Key, err)
	}

	decision, err := a.gate.Evaluate(ctx, posting, candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate posting %s: %w", posting.Key, err)
	}
	if decision.IsDuplicate() {
		return decision, nil, nil
	}

	run, err := a.store.CreateRun(ctx, posting.Key)
	if err != nil {
		return decision, nil, fmt.Errorf("failed to register run for %s: %w", posting.Key, err)
	}
	return decision, run, nil
}

func (a *app) close() {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}
