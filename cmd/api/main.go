package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/user/leadexport-service/internal/adapter/chromedp_page"
	"github.com/user/leadexport-service/internal/adapter/postgres"
	redis_adapter "github.com/user/leadexport-service/internal/adapter/redis"
	"github.com/user/leadexport-service/internal/artifact"
	"github.com/user/leadexport-service/internal/delivery/http/handler"
	"github.com/user/leadexport-service/internal/delivery/http/router"
	"github.com/user/leadexport-service/internal/extract"
	"github.com/user/leadexport-service/internal/usecase"
	"github.com/user/leadexport-service/pkg/config"
	"github.com/user/leadexport-service/pkg/logger"
	"github.com/user/leadexport-service/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Unable to load configuration", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger.Init(os.Stdout, logger.Level(cfg.LogLevel))
	slog.Info("Logger initialized", "level", cfg.LogLevel)

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	ctx := context.Background()

	// --- Database Connections ---
	dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	slog.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connection established")

	// --- Repositories ---
	ledgerRepo := postgres.NewLedgerRepo(dbpool)
	jobRepo := postgres.NewExportJobRepo(dbpool)
	artifactRepo := redis_adapter.NewArtifactRepo(rdb, cfg.ArtifactTTL())
	progressStore := redis_adapter.NewProgressStore(rdb)

	// --- Extraction wiring ---
	resolver := extract.NewResolver()
	extractCfg := extract.Config{
		ReadyPollInterval: cfg.ReadyPollInterval(),
		ReadyMaxAttempts:  cfg.ReadyMaxAttempts,
		SettleInterval:    cfg.ScrollSettle(),
		StallThreshold:    cfg.StallThreshold,
		ScrollRate:        rate.Limit(cfg.ScrollRatePerSec),
		DetailLimit:       cfg.DetailLimit,
	}
	newRunner := func(ctx context.Context, jobID string) (usecase.ExtractionRunner, error) {
		page := chromedp_page.New(chromedp_page.Config{SearchBaseURL: cfg.SearchBaseURL})
		return extract.NewOrchestrator(page, resolver, progressStore, extractCfg), nil
	}

	// --- Use Cases ---
	ledger := usecase.NewCreditLedger(ledgerRepo)
	exports := usecase.NewExportManager(
		jobRepo, ledger, artifactRepo, progressStore,
		newRunner, artifact.NewBuilder(), cfg.JobTimeout(),
	)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(exports, ledger, cfg.DefaultExportCost)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exiting")
}
