package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rankwise/analytics-core/internal/domain/stats"
)

// Service projects metric, keyword position, and traffic series forward
// with confidence bounds
type Service interface {
	ForecastLinear(ctx context.Context, clientID uuid.UUID, metricName string, daysAhead int) (*LinearForecast, error)
	ForecastMovingAverage(ctx context.Context, clientID uuid.UUID, metricName string, window, daysAhead int) (*MovingAverageForecast, error)
	ForecastKeywordPosition(ctx context.Context, clientID uuid.UUID, keyword string, daysAhead int) (*KeywordForecast, error)
	ForecastTraffic(ctx context.Context, clientID uuid.UUID, daysAhead int) (*TrafficForecast, error)
	ForecastAllMetrics(ctx context.Context, clientID uuid.UUID, daysAhead int) (*BatchForecast, error)
}

// MetricRepository is the slice of the metric repository this service
// consumes. Trend queries return ascending series; GetMetrics returns
// newest first.
type MetricRepository interface {
	GetMetrics(ctx context.Context, clientID uuid.UUID, query stats.MetricQuery) ([]stats.MetricSample, error)
	GetMetricTrend(ctx context.Context, clientID uuid.UUID, metricName string, months int) ([]stats.MetricSample, error)
	GetTrafficTrend(ctx context.Context, clientID uuid.UUID, days int) ([]stats.TrafficSample, error)
	GetKeywordHistory(ctx context.Context, clientID uuid.UUID, keyword string) ([]stats.KeywordObservation, error)
	SaveForecast(ctx context.Context, clientID uuid.UUID, metricName string, points []stats.ForecastPoint) error
}

// Confidence labels how well the fitted model explains the series
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TrendLabel is the raw sign of a fitted slope, without the significance
// gate applied to historical trend classification
type TrendLabel string

const (
	TrendIncreasing TrendLabel = "increasing"
	TrendDecreasing TrendLabel = "decreasing"
	TrendStable     TrendLabel = "stable"
)

// Response types

type LinearForecast struct {
	Metric         string                `json:"metric"`
	Model          string                `json:"model"`
	RSquared       float64               `json:"r_squared"`
	Confidence     Confidence            `json:"confidence"`
	Slope          float64               `json:"slope"`
	Trend          TrendLabel            `json:"trend"`
	Forecasts      []stats.ForecastPoint `json:"forecasts"`
	TotalForecasts int                   `json:"total_forecasts"`
}

type MovingAverageForecast struct {
	Metric        string                `json:"metric"`
	Model         string                `json:"model"`
	WindowSize    int                   `json:"window_size"`
	BaselineValue float64               `json:"baseline_value"`
	Forecasts     []stats.ForecastPoint `json:"forecasts"`
}

// PositionPoint is one projected keyword position. Positions stay inside
// [1, 100]: rank cannot exceed 100 or go below 1.
type PositionPoint struct {
	Date              time.Time `json:"date"`
	PredictedPosition float64   `json:"predicted_position"`
}

type KeywordForecast struct {
	Keyword              string          `json:"keyword"`
	CurrentPosition      float64         `json:"current_position"`
	ForecastedPosition30 *float64        `json:"forecasted_position_30d,omitempty"`
	ExpectedChange       float64         `json:"expected_change"`
	Trend                stats.Trend     `json:"trend"`
	Forecasts            []PositionPoint `json:"forecasts"`
}

type TrafficForecast struct {
	CurrentDailyAvg      float64               `json:"current_daily_avg"`
	ForecastedDailyAvg30 float64               `json:"forecasted_daily_avg_30d"`
	ExpectedGrowthRate   float64               `json:"expected_growth_rate"`
	Trend                TrendLabel            `json:"trend"`
	SeasonalityDetected  bool                  `json:"seasonality_detected"`
	Forecasts            []stats.ForecastPoint `json:"forecasts"`
}

// BatchForecast bundles linear forecasts for every tracked metric plus the
// traffic projection
type BatchForecast struct {
	ClientID     uuid.UUID                  `json:"client_id"`
	Metrics      map[string]*LinearForecast `json:"metrics"`
	Traffic      *TrafficForecast           `json:"traffic,omitempty"`
	TotalMetrics int                        `json:"total_metrics"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}
