package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rankwise/analytics-core/internal/infrastructure/config"
)

// ConnectionPool wraps a pgx pool with health checking and sane runtime
// parameters for analytical read workloads
type ConnectionPool struct {
	pool            *pgxpool.Pool
	logger          *zap.Logger
	healthCheckStop chan struct{}
}

// NewConnectionPool creates a connection pool from the database config
func NewConnectionPool(cfg *config.DatabaseConfig, logger *zap.Logger) (*ConnectionPool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolCfg.MaxConnIdleTime = 10 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second
	poolCfg.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "rankwise_analyzer",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cp := &ConnectionPool{
		pool:            pool,
		logger:          logger,
		healthCheckStop: make(chan struct{}),
	}
	go cp.healthCheckRoutine()

	logger.Info("database connection pool initialized",
		zap.Int("max_connections", int(poolCfg.MaxConns)))

	return cp, nil
}

// Pool returns the underlying pgx pool
func (p *ConnectionPool) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *ConnectionPool) healthCheckRoutine() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.pool.Ping(ctx); err != nil {
				p.logger.Error("database health check failed", zap.Error(err))
			}
			cancel()
		case <-p.healthCheckStop:
			return
		}
	}
}

// Close shuts down the pool and its health checker
func (p *ConnectionPool) Close() error {
	close(p.healthCheckStop)
	p.pool.Close()
	p.logger.Info("database connection pool closed")
	return nil
}
