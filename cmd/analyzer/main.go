package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rankwise/analytics-core/internal/infrastructure/config"
	"github.com/rankwise/analytics-core/internal/infrastructure/database"
	"github.com/rankwise/analytics-core/internal/infrastructure/repository"
	"github.com/rankwise/analytics-core/internal/infrastructure/telemetry"
	"github.com/rankwise/analytics-core/internal/metrics"
	"github.com/rankwise/analytics-core/internal/service/anomaly"
	"github.com/rankwise/analytics-core/internal/service/forecast"
	"github.com/rankwise/analytics-core/internal/service/history"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analyzer failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "rankwise-analyzer",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewConnectionPool(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	registry, err := metrics.NewRegistry("rankwise-analyzer")
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}

	repo := repository.NewStatsRepository(pool.Pool())

	detectorCfg := anomaly.DefaultConfig()
	detectorCfg.ZScoreThreshold = cfg.Analyzer.ZScoreThreshold
	detectorCfg.PercentChangeThreshold = cfg.Analyzer.PercentChangeThreshold
	detectorCfg.PositionThreshold = cfg.Analyzer.PositionThreshold

	forecaster := forecast.NewService(repo, logger, registry)
	detector := anomaly.NewService(repo, detectorCfg, logger, registry)
	analyzer := history.NewService(repo, logger)

	metricsSrv := startMetricsServer(cfg.Metrics.Port, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	runner := &batchRunner{
		repo:       repo,
		pool:       pool.Pool(),
		forecaster: forecaster,
		detector:   detector,
		analyzer:   analyzer,
		horizon:    cfg.Analyzer.ForecastHorizonDays,
		limiter:    rate.NewLimiter(rate.Limit(cfg.Analyzer.ScansPerSecond), cfg.Analyzer.ScanBurst),
		logger:     logger,
	}

	logger.Info("analyzer started",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment))

	return runner.Run(ctx)
}

// batchRunner walks the client list at a bounded rate, running the
// detection, forecasting, and trend analysis pipeline for each client
type batchRunner struct {
	repo       *repository.StatsRepository
	pool       *pgxpool.Pool
	forecaster forecast.Service
	detector   anomaly.Service
	analyzer   history.Service
	horizon    int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func (r *batchRunner) Run(ctx context.Context) error {
	clientIDs, err := r.repo.ListClientIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}
	if len(clientIDs) == 0 {
		r.logger.Info("no clients to analyze")
		return nil
	}

	var failures int
	for _, clientID := range clientIDs {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		if err := r.runClient(ctx, clientID); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failures++
			RecordClientScan("error", time.Since(start))
			r.logger.Error("client analysis failed",
				zap.String("client_id", clientID.String()),
				zap.Error(err))
			continue
		}
		RecordClientScan("ok", time.Since(start))

		stat := r.pool.Stat()
		UpdateDBConnectionPoolMetrics(
			int(stat.AcquiredConns()), int(stat.IdleConns()), int(stat.TotalConns()))
	}

	r.logger.Info("analysis batch completed",
		zap.Int("clients", len(clientIDs)),
		zap.Int("failures", failures))
	return nil
}

func (r *batchRunner) runClient(ctx context.Context, id uuid.UUID) error {
	scan, err := r.detector.ScanAll(ctx, id)
	if err != nil {
		return fmt.Errorf("anomaly scan: %w", err)
	}
	RecordAnomaliesFound("critical", scan.Summary.CriticalCount)
	RecordAnomaliesFound("high", scan.Summary.HighCount)
	RecordAnomaliesFound("medium", scan.Summary.MediumCount)

	if _, err := r.forecaster.ForecastAllMetrics(ctx, id, r.horizon); err != nil {
		return fmt.Errorf("forecasting: %w", err)
	}

	if _, err := r.analyzer.TrendReport(ctx, id); err != nil {
		return fmt.Errorf("trend report: %w", err)
	}

	return nil
}

func startMetricsServer(port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}
