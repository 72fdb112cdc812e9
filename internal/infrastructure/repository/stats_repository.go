package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankwise/analytics-core/internal/domain/stats"
)

// StatsRepository is the PostgreSQL implementation of the metric store
// consumed by the forecast, anomaly, and history services. Read queries
// hit the seo_metrics, keyword_metrics, traffic_metrics, clients, and
// reports tables; detected anomalies and generated forecasts are written
// back for audit.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new PostgreSQL stats repository
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// GetMetrics retrieves metric samples for a client, newest first.
// The query filters by metric name and date range when set.
func (r *StatsRepository) GetMetrics(ctx context.Context, clientID uuid.UUID, query stats.MetricQuery) ([]stats.MetricSample, error) {
	sql := `
		SELECT client_id, metric_name, metric_value, metric_date, unit, module
		FROM seo_metrics
		WHERE client_id = $1`
	args := []any{clientID}

	if query.MetricName != "" {
		args = append(args, query.MetricName)
		sql += fmt.Sprintf(" AND metric_name = $%d", len(args))
	}
	if query.StartDate != nil {
		args = append(args, *query.StartDate)
		sql += fmt.Sprintf(" AND metric_date >= $%d", len(args))
	}
	if query.EndDate != nil {
		args = append(args, *query.EndDate)
		sql += fmt.Sprintf(" AND metric_date <= $%d", len(args))
	}
	sql += " ORDER BY metric_date DESC"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var samples []stats.MetricSample
	for rows.Next() {
		var s stats.MetricSample
		if err := rows.Scan(&s.ClientID, &s.MetricName, &s.Value, &s.Date, &s.Unit, &s.Module); err != nil {
			return nil, fmt.Errorf("failed to scan metric sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// GetMetricTrend retrieves samples of one metric over the trailing months,
// oldest first
func (r *StatsRepository) GetMetricTrend(ctx context.Context, clientID uuid.UUID, metricName string, months int) ([]stats.MetricSample, error) {
	since := time.Now().UTC().AddDate(0, -months, 0)

	rows, err := r.pool.Query(ctx, `
		SELECT client_id, metric_name, metric_value, metric_date, unit, module
		FROM seo_metrics
		WHERE client_id = $1 AND metric_name = $2 AND metric_date >= $3
		ORDER BY metric_date ASC`,
		clientID, metricName, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric trend: %w", err)
	}
	defer rows.Close()

	var samples []stats.MetricSample
	for rows.Next() {
		var s stats.MetricSample
		if err := rows.Scan(&s.ClientID, &s.MetricName, &s.Value, &s.Date, &s.Unit, &s.Module); err != nil {
			return nil, fmt.Errorf("failed to scan metric sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// GetTrafficTrend retrieves daily traffic samples over the trailing days,
// oldest first
func (r *StatsRepository) GetTrafficTrend(ctx context.Context, clientID uuid.UUID, days int) ([]stats.TrafficSample, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := r.pool.Query(ctx, `
		SELECT client_id, metric_date, sessions, users, pageviews,
		       bounce_rate, avg_session_duration, source, device
		FROM traffic_metrics
		WHERE client_id = $1 AND metric_date >= $2
		ORDER BY metric_date ASC`,
		clientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic trend: %w", err)
	}
	defer rows.Close()

	var samples []stats.TrafficSample
	for rows.Next() {
		var s stats.TrafficSample
		if err := rows.Scan(&s.ClientID, &s.Date, &s.Sessions, &s.Users, &s.Pageviews,
			&s.BounceRate, &s.AvgSessionDuration, &s.Source, &s.Device); err != nil {
			return nil, fmt.Errorf("failed to scan traffic sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// GetKeywordHistory retrieves all observations of a keyword, oldest first
func (r *StatsRepository) GetKeywordHistory(ctx context.Context, clientID uuid.UUID, keyword string) ([]stats.KeywordObservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, keyword, position, previous_position, position_change,
		       impressions, clicks, ctr, metric_date, url
		FROM keyword_metrics
		WHERE client_id = $1 AND keyword = $2
		ORDER BY metric_date ASC`,
		clientID, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query keyword history: %w", err)
	}
	defer rows.Close()

	return scanKeywordRows(rows)
}

// GetTopKeywords retrieves the latest observation date's keywords ordered
// by clicks descending
func (r *StatsRepository) GetTopKeywords(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.KeywordObservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, keyword, position, previous_position, position_change,
		       impressions, clicks, ctr, metric_date, url
		FROM keyword_metrics
		WHERE client_id = $1
		  AND metric_date = (SELECT MAX(metric_date) FROM keyword_metrics WHERE client_id = $1)
		ORDER BY clicks DESC
		LIMIT $2`,
		clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keywords: %w", err)
	}
	defer rows.Close()

	return scanKeywordRows(rows)
}

// SaveForecast persists a batch of forecast points for a metric
func (r *StatsRepository) SaveForecast(ctx context.Context, clientID uuid.UUID, metricName string, points []stats.ForecastPoint) error {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO forecasts (client_id, metric_name, forecast_date,
			                       predicted_value, confidence_low, confidence_high, model_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (client_id, metric_name, forecast_date, model_type)
			DO UPDATE SET predicted_value = EXCLUDED.predicted_value,
			              confidence_low = EXCLUDED.confidence_low,
			              confidence_high = EXCLUDED.confidence_high`,
			clientID, metricName, p.Date, p.PredictedValue, p.ConfidenceLow, p.ConfidenceHigh, p.ModelType)
	}

	// all points land or none do
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range points {
			if _, err := results.Exec(); err != nil {
				return err
			}
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to save forecast batch: %w", err)
	}
	return nil
}

// SaveAnomaly persists a detected anomaly
func (r *StatsRepository) SaveAnomaly(ctx context.Context, anomaly stats.Anomaly) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO anomalies (client_id, metric_name, anomaly_date, expected_value,
		                       actual_value, deviation_percent, z_score, kind, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_id, metric_name, anomaly_date) DO NOTHING`,
		anomaly.ClientID, anomaly.MetricName, anomaly.Date, anomaly.ExpectedValue,
		anomaly.ActualValue, anomaly.DeviationPercent, anomaly.ZScore, anomaly.Kind, anomaly.Severity)
	if err != nil {
		return fmt.Errorf("failed to save anomaly: %w", err)
	}
	return nil
}

// GetReports retrieves recent report health scores, newest first
func (r *StatsRepository) GetReports(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.ReportScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT report_date, health_score
		FROM reports
		WHERE client_id = $1
		ORDER BY report_date DESC
		LIMIT $2`,
		clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var scores []stats.ReportScore
	for rows.Next() {
		var s stats.ReportScore
		if err := rows.Scan(&s.ReportDate, &s.HealthScore); err != nil {
			return nil, fmt.Errorf("failed to scan report score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// GetClient retrieves a client by ID. Returns (nil, nil) when no client
// with that ID exists.
func (r *StatsRepository) GetClient(ctx context.Context, clientID uuid.UUID) (*stats.Client, error) {
	var c stats.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, name FROM clients WHERE id = $1`,
		clientID).Scan(&c.ID, &c.Name)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	return &c, nil
}

// ListClientIDs returns the IDs of every client, used by the batch
// analyzer loop
func (r *StatsRepository) ListClientIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM clients ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanKeywordRows(rows pgx.Rows) ([]stats.KeywordObservation, error) {
	var observations []stats.KeywordObservation
	for rows.Next() {
		var o stats.KeywordObservation
		if err := rows.Scan(&o.ClientID, &o.Keyword, &o.Position, &o.PreviousPosition,
			&o.PositionChange, &o.Impressions, &o.Clicks, &o.CTR, &o.Date, &o.URL); err != nil {
			return nil, fmt.Errorf("failed to scan keyword observation: %w", err)
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}
