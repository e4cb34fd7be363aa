package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"reorder-engine/config"
	webAdapter "reorder-engine/internal/adapters/web"
	"reorder-engine/internal/app"
	"reorder-engine/internal/core"
	"reorder-engine/internal/db"
	"reorder-engine/internal/logger"
	"reorder-engine/internal/metrics"
)

func main() {
	_ = godotenv.Load()
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

	reg := metrics.NewRegistry()
	forecaster := core.NewForecaster(core.ForecastParams{
		WindowFloorDays:   cfg.Engine.WindowFloorDays,
		SeasonalCycleDays: cfg.Engine.SeasonalCycleDays,
		MinSamples:        cfg.Engine.MinSamples,
		ConfidenceFloor:   cfg.Engine.ConfidenceFloor,
		ConfidenceCeiling: cfg.Engine.ConfidenceCeiling,
		LowDataCap:        cfg.Engine.LowDataCap,
		StockoutScanDays:  core.DefaultForecastParams().StockoutScanDays,
	})
	genParams := core.GeneratorParams{
		HighMultiplier:   cfg.Engine.UrgencyHighMultiplier,
		MediumMultiplier: cfg.Engine.UrgencyMediumMultiplier,
	}

	policyService := core.NewPolicyService(pool)
	suggestionService := core.NewSuggestionService(pool)
	analysisService := core.NewAnalysisService(
		pool,
		core.NewDataSource(pool),
		policyService,
		suggestionService,
		settingsService,
		forecaster,
		genParams,
		core.AnalysisParams{
			Workers:          cfg.Engine.Workers,
			JobTimeout:       cfg.Engine.JobTimeout,
			PerProductBudget: cfg.Engine.PerProductBudget,
			HorizonDays:      cfg.Engine.HorizonDays,
		},
		zlog,
		reg,
	)

	svc := app.NewAppService(suggestionService, analysisService, policyService, settingsService)
	handler := webAdapter.NewHandler(svc, cfg.Server.AllowedOrigins, zlog, reg.Handler())

	zlog.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := http.ListenAndServe(":"+cfg.Server.Port, handler); err != nil {
		zlog.Fatal("server", zap.Error(err))
	}
}
