package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/paperbirthdays/ingestion-service/internal/config"
	"github.com/paperbirthdays/ingestion-service/internal/database"
	"github.com/paperbirthdays/ingestion-service/internal/ingestion"
	"github.com/paperbirthdays/ingestion-service/internal/observability"
	"github.com/paperbirthdays/ingestion-service/internal/papersources"
	"github.com/paperbirthdays/ingestion-service/internal/papersources/semanticscholar"
	"github.com/paperbirthdays/ingestion-service/internal/repository"
	"github.com/paperbirthdays/ingestion-service/internal/validator"
)

// metricsNamespace prefixes all Prometheus metric names.
const metricsNamespace = "paperdays"

// app wires configuration, storage, the source clients and the pipeline for
// one CLI invocation.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	db           *database.DB
	metrics      *observability.Metrics
	orchestrator *ingestion.Orchestrator
	trimmer      *ingestion.Trimmer
	bulk         *semanticscholar.BulkClient

	metricsServer *http.Server
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := observability.DefaultLoggingConfig()
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	if cfg.Logging.TimeFormat != "" {
		logCfg.TimeFormat = cfg.Logging.TimeFormat
	}
	logger := observability.NewLogger(logCfg)
	logger = logger.With().Str("component", "ingest").Logger()

	metrics := observability.NewMetrics(metricsNamespace)

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sc := cfg.Source.SemanticScholar

	// One limiter for both search and bulk metadata requests, so the pool
	// of workers never exceeds the per-source budget.
	limiter := papersources.NewRateLimiter(sc.RateLimit, sc.BurstSize)
	if sc.APIKey == "" && sc.UnauthenticatedRateLimit > 0 {
		// Without a key the source grants roughly 100 requests per 5
		// minutes; drop to the keyless budget.
		limiter.SetRate(sc.UnauthenticatedRateLimit)
		logger.Info().
			Float64("rate_limit", sc.UnauthenticatedRateLimit).
			Msg("no API key configured, using keyless rate budget")
	}
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:           sc.Timeout,
		Limiter:           limiter,
		MaxRetries:        sc.MaxRetries,
		RetryDelay:        sc.RetryDelay,
		RateLimitCooldown: sc.RateLimitCooldown,
		MaxRateLimitWaits: sc.MaxRateLimitWaits,
		APIKey:            sc.APIKey,
		APIKeyHeader:      semanticscholar.APIKeyHeader,
		Metrics:           metrics,
	})

	sourceCfg := semanticscholar.Config{
		BaseURL:     sc.BaseURL,
		DatasetsURL: sc.DatasetsURL,
		Release:     sc.Release,
		APIKey:      sc.APIKey,
		Timeout:     sc.Timeout,
		PageSize:    sc.PageSize,
	}
	source := semanticscholar.NewClient(sourceCfg, httpClient)
	bulk := semanticscholar.NewBulkClient(sourceCfg, httpClient)

	papers := repository.NewPgPaperRepository(db, cfg.Ingestion.RefreshAuthors)
	runs := repository.NewPgRunRepository(db)
	failures := repository.NewPgFailedFetchRepository(db)

	watermark, err := time.Parse("2006-01-02", cfg.Ingestion.DefaultWatermark)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("parse default watermark: %w", err)
	}

	orchestrator, err := ingestion.New(ingestion.Config{
		Workers:          cfg.Ingestion.Workers,
		BatchSize:        cfg.Ingestion.BatchSize,
		DefaultWatermark: watermark,
	}, ingestion.Deps{
		Source: source,
		Bulk:   bulk,
		Validator: validator.New(validator.Config{
			CitationThreshold: cfg.Validation.DefaultCitationThreshold,
			FieldThresholds:   cfg.Validation.FieldThresholds,
			MaxAuthorWarn:     cfg.Validation.MaxAuthors,
			StrictAuthorLimit: cfg.Validation.StrictAuthorLimit,
		}),
		Papers:   papers,
		Runs:     runs,
		Failures: failures,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	trimmer, err := ingestion.NewTrimmer(papers, db, metrics, logger, cfg.Ingestion.KeepTopPerDay)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build trimmer: %w", err)
	}

	a := &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		metrics:      metrics,
		orchestrator: orchestrator,
		trimmer:      trimmer,
		bulk:         bulk,
	}
	a.startMetricsServer()
	return a, nil
}

// startMetricsServer exposes the Prometheus endpoint for the lifetime of the
// run when enabled. Scrapes of short runs are best-effort.
func (a *app) startMetricsServer() {
	if !a.cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info().Str("address", a.cfg.Metrics.Address).Msg("metrics listener started")
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
}

func (a *app) close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("metrics listener shutdown failed")
		}
		cancel()
	}
	a.db.Close()
}
