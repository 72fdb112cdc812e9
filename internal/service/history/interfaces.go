package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rankwise/analytics-core/internal/domain/stats"
)

// Service compares current performance against prior periods and
// classifies trend direction and volatility
type Service interface {
	CompareMonthOverMonth(ctx context.Context, clientID uuid.UUID, metricName string) (*MonthOverMonth, error)
	CompareYearOverYear(ctx context.Context, clientID uuid.UUID, metricName string) (*YearOverYear, error)
	MetricSummary(ctx context.Context, clientID uuid.UUID, metricName string, months int) (*MetricSummary, error)
	AnalyzeKeywordTrends(ctx context.Context, clientID uuid.UUID, keyword string) (*KeywordTrend, error)
	CompareKeywordPeriods(ctx context.Context, clientID uuid.UUID, daysBack int) (*KeywordPeriodComparison, error)
	HealthScoreTrend(ctx context.Context, clientID uuid.UUID, months int) (*HealthTrend, error)
	TopImprovements(ctx context.Context, clientID uuid.UUID, limit int) ([]Improvement, error)
	ConcerningTrends(ctx context.Context, clientID uuid.UUID) ([]Concern, error)
	TrendReport(ctx context.Context, clientID uuid.UUID) (*TrendReport, error)
}

// StatsRepository is the slice of the metric repository this service
// consumes
type StatsRepository interface {
	GetMetrics(ctx context.Context, clientID uuid.UUID, query stats.MetricQuery) ([]stats.MetricSample, error)
	GetMetricTrend(ctx context.Context, clientID uuid.UUID, metricName string, months int) ([]stats.MetricSample, error)
	GetKeywordHistory(ctx context.Context, clientID uuid.UUID, keyword string) ([]stats.KeywordObservation, error)
	GetTopKeywords(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.KeywordObservation, error)
	GetReports(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.ReportScore, error)
	GetClient(ctx context.Context, clientID uuid.UUID) (*stats.Client, error)
}

// MonthOverMonth compares the two most recent samples of a metric
type MonthOverMonth struct {
	Metric        string      `json:"metric"`
	CurrentValue  float64     `json:"current_value"`
	CurrentDate   time.Time   `json:"current_date"`
	PreviousValue float64     `json:"previous_value"`
	PreviousDate  time.Time   `json:"previous_date"`
	Change        float64     `json:"change"`
	ChangePercent float64     `json:"change_percent"`
	Trend         stats.Trend `json:"trend"`
}

// YearOverYear compares 30-day window averages a year apart. Averages,
// not single points, so one missing snapshot doesn't skew the comparison.
type YearOverYear struct {
	Metric         string      `json:"metric"`
	CurrentAverage float64     `json:"current_average"`
	YearAgoAverage float64     `json:"year_ago_average"`
	Change         float64     `json:"change"`
	ChangePercent  float64     `json:"change_percent"`
	Trend          stats.Trend `json:"trend"`
}

// MetricSummary aggregates a metric over a month window
type MetricSummary struct {
	Metric         string               `json:"metric"`
	PeriodMonths   int                  `json:"period_months"`
	CurrentValue   float64              `json:"current_value"`
	MinValue       float64              `json:"min_value"`
	MaxValue       float64              `json:"max_value"`
	AverageValue   float64              `json:"average_value"`
	StdDeviation   float64              `json:"std_deviation"`
	TrendDirection stats.Trend          `json:"trend_direction"`
	Volatility     stats.Volatility     `json:"volatility"`
	DataPoints     int                  `json:"data_points"`
	Timeline       []stats.MetricSample `json:"timeline"`
}

// KeywordTrend summarizes a keyword's full tracked history. A positive
// PositionImprovement means the keyword moved up: lower position numbers
// rank better.
type KeywordTrend struct {
	Keyword             string                     `json:"keyword"`
	FirstTracked        time.Time                  `json:"first_tracked"`
	LastTracked         time.Time                  `json:"last_tracked"`
	CurrentPosition     *float64                   `json:"current_position,omitempty"`
	BestPosition        *float64                   `json:"best_position,omitempty"`
	WorstPosition       *float64                   `json:"worst_position,omitempty"`
	AveragePosition     *float64                   `json:"average_position,omitempty"`
	PositionImprovement float64                    `json:"position_improvement"`
	TotalClicks         int64                      `json:"total_clicks"`
	AvgClicks           float64                    `json:"avg_clicks"`
	Trend               stats.Trend                `json:"trend"`
	History             []stats.KeywordObservation `json:"history"`
}

// KeywordStatus labels the direction of a keyword period comparison
type KeywordStatus string

const (
	StatusImproved KeywordStatus = "improved"
	StatusDeclined KeywordStatus = "declined"
	StatusStable   KeywordStatus = "stable"
)

// KeywordComparison compares one keyword's latest observation with the
// most recent one at or before the cutoff. PositionChange is previous
// minus current, so positive means improved.
type KeywordComparison struct {
	Keyword          string        `json:"keyword"`
	CurrentPosition  *float64      `json:"current_position,omitempty"`
	PreviousPosition *float64      `json:"previous_position,omitempty"`
	PositionChange   float64       `json:"position_change"`
	CurrentClicks    int64         `json:"current_clicks"`
	PreviousClicks   int64         `json:"previous_clicks"`
	ClicksChange     int64         `json:"clicks_change"`
	Status           KeywordStatus `json:"status"`
}

// KeywordPeriodComparison is the batch comparison across a client's top
// keywords
type KeywordPeriodComparison struct {
	PeriodDays    int                 `json:"period_days"`
	TotalKeywords int                 `json:"total_keywords"`
	Improved      int                 `json:"improved"`
	Declined      int                 `json:"declined"`
	Stable        int                 `json:"stable"`
	TopWinners    []KeywordComparison `json:"top_winners"`
	TopLosers     []KeywordComparison `json:"top_losers"`
	All           []KeywordComparison `json:"all_comparisons"`
}

// ScorePoint is one dated health score
type ScorePoint struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

// HealthTrend tracks the report health score over time
type HealthTrend struct {
	CurrentScore float64      `json:"current_score"`
	AverageScore float64      `json:"average_score"`
	BestScore    float64      `json:"best_score"`
	WorstScore   float64      `json:"worst_score"`
	Improvement  float64      `json:"improvement"`
	Trend        stats.Trend  `json:"trend"`
	History      []ScorePoint `json:"history"`
}

// Improvement is a metric with a notable month-over-month change
type Improvement struct {
	Metric        string  `json:"metric"`
	ChangePercent float64 `json:"change_percent"`
	ChangeValue   float64 `json:"change_value"`
	CurrentValue  float64 `json:"current_value"`
}

// Concern is a metric trending down; high volatility escalates severity
type Concern struct {
	Metric       string           `json:"metric"`
	Trend        stats.Trend      `json:"trend"`
	Volatility   stats.Volatility `json:"volatility"`
	Severity     stats.Severity   `json:"severity"`
	CurrentValue float64          `json:"current_value"`
	Average      float64          `json:"average"`
}

// KeywordPerformance is the keyword slice of a trend report
type KeywordPerformance struct {
	Improved   int                 `json:"improved"`
	Declined   int                 `json:"declined"`
	TopWinners []KeywordComparison `json:"top_winners"`
	TopLosers  []KeywordComparison `json:"top_losers"`
}

// ReportSummary rolls the trend report up to a single health verdict
type ReportSummary struct {
	TotalMetricsTracked int    `json:"total_metrics_tracked"`
	PositiveTrends      int    `json:"positive_trends"`
	NegativeTrends      int    `json:"negative_trends"`
	OverallHealth       string `json:"overall_health"`
}

// TrendReport is the full historical analysis for one client
type TrendReport struct {
	ClientName         string             `json:"client_name"`
	GeneratedAt        time.Time          `json:"generated_at"`
	HealthScoreTrend   *HealthTrend       `json:"health_score_trend,omitempty"`
	TopImprovements    []Improvement      `json:"top_improvements"`
	ConcerningTrends   []Concern          `json:"concerning_trends"`
	KeywordPerformance KeywordPerformance `json:"keyword_performance"`
	Summary            ReportSummary      `json:"summary"`
}
