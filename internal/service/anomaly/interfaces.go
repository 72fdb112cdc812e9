package anomaly

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rankwise/analytics-core/internal/domain/stats"
)

// Service flags statistically unusual points in metric and traffic series
// and structural issues in keyword rankings
type Service interface {
	DetectMetricAnomalies(ctx context.Context, clientID uuid.UUID, metricName string) ([]stats.Anomaly, error)
	DetectTrafficAnomalies(ctx context.Context, clientID uuid.UUID) ([]stats.Anomaly, error)
	DetectRankingDrops(ctx context.Context, clientID uuid.UUID) ([]RankingDrop, error)
	DetectCannibalization(ctx context.Context, clientID uuid.UUID) ([]CannibalizationIssue, error)
	ScanAll(ctx context.Context, clientID uuid.UUID) (*ScanResult, error)
	GenerateAlerts(ctx context.Context, clientID uuid.UUID) ([]Alert, error)
}

// StatsRepository is the slice of the metric repository this service
// consumes
type StatsRepository interface {
	GetMetrics(ctx context.Context, clientID uuid.UUID, query stats.MetricQuery) ([]stats.MetricSample, error)
	GetTrafficTrend(ctx context.Context, clientID uuid.UUID, days int) ([]stats.TrafficSample, error)
	GetTopKeywords(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.KeywordObservation, error)
	GetKeywordHistory(ctx context.Context, clientID uuid.UUID, keyword string) ([]stats.KeywordObservation, error)
	GetClient(ctx context.Context, clientID uuid.UUID) (*stats.Client, error)
	SaveAnomaly(ctx context.Context, anomaly stats.Anomaly) error
}

// Config holds the detection thresholds, immutable after construction
type Config struct {
	// z-score cutoff for metric anomalies
	ZScoreThreshold float64
	// percent deviation from the EMA that flags a traffic point
	PercentChangeThreshold float64
	// minimum position loss that counts as a ranking drop
	PositionThreshold float64
	// lookback windows
	MetricWindowDays  int
	TrafficWindowDays int
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		ZScoreThreshold:        2.5,
		PercentChangeThreshold: 30,
		PositionThreshold:      5,
		MetricWindowDays:       90,
		TrafficWindowDays:      30,
	}
}

// RankingDrop is a keyword that lost more positions than the threshold
type RankingDrop struct {
	Keyword          string         `json:"keyword"`
	CurrentPosition  *float64       `json:"current_position,omitempty"`
	PreviousPosition *float64       `json:"previous_position,omitempty"`
	PositionDrop     float64        `json:"position_drop"`
	ClicksLost       int64          `json:"clicks_lost"`
	Severity         stats.Severity `json:"severity"`
	DetectedAt       time.Time      `json:"detected_at"`
}

// CompetingURL is one page ranking for a cannibalized keyword
type CompetingURL struct {
	URL      string   `json:"url"`
	Position *float64 `json:"position,omitempty"`
	Clicks   int64    `json:"clicks"`
}

// CannibalizationIssue is a keyword with multiple pages of the same site
// competing for it
type CannibalizationIssue struct {
	Keyword       string         `json:"keyword"`
	CompetingURLs int            `json:"competing_urls"`
	BestPosition  *float64       `json:"best_position,omitempty"`
	WorstPosition *float64       `json:"worst_position,omitempty"`
	URLs          []CompetingURL `json:"urls"`
	Severity      stats.Severity `json:"severity"`
}

// ScanSummary counts every finding of a comprehensive scan by severity
type ScanSummary struct {
	TotalAnomalies        int `json:"total_anomalies"`
	RankingDrops          int `json:"ranking_drops"`
	CannibalizationIssues int `json:"cannibalization_issues"`
	CriticalCount         int `json:"critical_count"`
	HighCount             int `json:"high_count"`
	MediumCount           int `json:"medium_count"`
}

// ScanResult is the comprehensive anomaly scan output
type ScanResult struct {
	ClientName      string                 `json:"client_name"`
	ScanDate        time.Time              `json:"scan_date"`
	Summary         ScanSummary            `json:"summary"`
	CriticalIssues  []stats.Anomaly        `json:"critical_issues"`
	HighPriority    []stats.Anomaly        `json:"high_priority"`
	MediumPriority  []stats.Anomaly        `json:"medium_priority"`
	RankingDrops    []RankingDrop          `json:"ranking_drops"`
	Cannibalization []CannibalizationIssue `json:"cannibalization"`
	Recommendations []string               `json:"recommendations"`
}

// Alert actions are fixed tags, not free text, so downstream consumers can
// route alerts programmatically
const (
	ActionInvestigate = "immediate_investigation_required"
	ActionReviewPage  = "review_page_and_competitors"
	ActionConsolidate = "consolidate_or_differentiate_content"
)

// Alert is one prioritized, routable alert derived from a scan
type Alert struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Priority int    `json:"priority"`
}
