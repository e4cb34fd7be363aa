package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"reorder-engine/config"
	"reorder-engine/internal/core"
	"reorder-engine/internal/db"
	"reorder-engine/internal/logger"
	"reorder-engine/internal/metrics"
)

// analyze triggers one analysis run from the command line and polls it to
// completion. Intended for cron-driven scheduled runs:
//
//	analyze -scope all
//	analyze -scope product -target 42 -urgency-only
func main() {
	_ = godotenv.Load()

	scopeFlag := flag.String("scope", "all", "analysis scope: all, category, supplier, product")
	targetFlag := flag.Int("target", 0, "target id (required for every scope except all)")
	urgencyOnly := flag.Bool("urgency-only", false, "fast pass that skips well-stocked products")
	flag.Parse()

	cfg := config.LoadEnv()
	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	settingsService, err := core.NewSettingsService(ctx, pool)
	if err != nil {
		zlog.Fatal("settings bootstrap", zap.Error(err))
	}

	analysis := core.NewAnalysisService(
		pool,
		core.NewDataSource(pool),
		core.NewPolicyService(pool),
		core.NewSuggestionService(pool),
		settingsService,
		core.NewForecaster(core.DefaultForecastParams()),
		core.DefaultGeneratorParams(),
		core.AnalysisParams{
			Workers:          cfg.Engine.Workers,
			JobTimeout:       cfg.Engine.JobTimeout,
			PerProductBudget: cfg.Engine.PerProductBudget,
			HorizonDays:      cfg.Engine.HorizonDays,
		},
		zlog,
		metrics.NewRegistry(),
	)

	scope := core.JobScope(*scopeFlag)
	var target *int
	if scope != core.JobScopeAll {
		if *targetFlag <= 0 {
			fmt.Fprintf(os.Stderr, "scope %s requires -target\n", scope)
			os.Exit(2)
		}
		target = targetFlag
	}

	job, err := analysis.Trigger(ctx, scope, target, *urgencyOnly)
	if err != nil {
		zlog.Fatal("trigger analysis", zap.Error(err))
	}
	zlog.Info("analysis started", zap.String("job_id", job.ID), zap.String("scope", string(scope)))

	for !job.Status.Terminal() {
		time.Sleep(500 * time.Millisecond)
		job, err = analysis.Job(ctx, job.ID)
		if err != nil {
			zlog.Fatal("poll job", zap.Error(err))
		}
	}

	if job.Status == core.JobFailed {
		msg := ""
		if job.Error != nil {
			msg = *job.Error
		}
		zlog.Fatal("analysis failed", zap.String("job_id", job.ID), zap.String("error", msg))
	}

	count := 0
	if job.SuggestionsCount != nil {
		count = *job.SuggestionsCount
	}
	zlog.Info("analysis completed", zap.String("job_id", job.ID), zap.Int("suggestions", count))
}
