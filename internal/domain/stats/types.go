package stats

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious an anomaly or trend concern is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a sortable weight, higher = more severe
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// SeverityForDeviation maps an absolute percent deviation to a severity band
func SeverityForDeviation(deviationPercent float64) Severity {
	switch {
	case deviationPercent > 50:
		return SeverityCritical
	case deviationPercent > 30:
		return SeverityHigh
	case deviationPercent > 15:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AnomalyKind distinguishes the direction of a flagged point
type AnomalyKind string

const (
	AnomalySpike AnomalyKind = "spike"
	AnomalyDrop  AnomalyKind = "drop"
)

// MetricSample is one repository-owned performance observation. The core
// reads samples and persists derived records; it never mutates them.
type MetricSample struct {
	ClientID   uuid.UUID `json:"client_id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Date       time.Time `json:"date"`
	Unit       string    `json:"unit,omitempty"`
	Module     string    `json:"module,omitempty"`
}

// KeywordObservation is one keyword ranking snapshot. A keyword may have
// many observations over time, and several at the same date across distinct
// URLs, which is what cannibalization detection looks for.
type KeywordObservation struct {
	ClientID         uuid.UUID `json:"client_id"`
	Keyword          string    `json:"keyword"`
	Position         *float64  `json:"position,omitempty"`
	PreviousPosition *float64  `json:"previous_position,omitempty"`
	PositionChange   *float64  `json:"position_change,omitempty"`
	Impressions      int64     `json:"impressions"`
	Clicks           int64     `json:"clicks"`
	CTR              float64   `json:"ctr"`
	Date             time.Time `json:"date"`
	URL              string    `json:"url,omitempty"`
}

// TrafficSample is one pre-aggregated daily traffic row
type TrafficSample struct {
	ClientID           uuid.UUID `json:"client_id"`
	Date               time.Time `json:"date"`
	Sessions           float64   `json:"sessions"`
	Users              int64     `json:"users"`
	Pageviews          int64     `json:"pageviews"`
	BounceRate         *float64  `json:"bounce_rate,omitempty"`
	AvgSessionDuration *float64  `json:"avg_session_duration,omitempty"`
	Source             string    `json:"source,omitempty"`
	Device             string    `json:"device,omitempty"`
}

// ForecastPoint is a derived, recomputable projection for one future day.
// Persistence is audit trail only, never the source of truth.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_value"`
	ConfidenceLow  float64   `json:"confidence_low"`
	ConfidenceHigh float64   `json:"confidence_high"`
	ModelType      string    `json:"model_type"`
}

// Anomaly is a flagged point, persisted for audit
type Anomaly struct {
	ClientID         uuid.UUID   `json:"client_id"`
	MetricName       string      `json:"metric_name"`
	Date             time.Time   `json:"date"`
	ExpectedValue    float64     `json:"expected_value"`
	ActualValue      float64     `json:"actual_value"`
	DeviationPercent float64     `json:"deviation_percent"`
	ZScore           float64     `json:"z_score,omitempty"`
	Kind             AnomalyKind `json:"type"`
	Severity         Severity    `json:"severity"`
}

// MetricQuery narrows a metric lookup. A zero value selects every sample
// for the client, newest first.
type MetricQuery struct {
	MetricName string
	StartDate  *time.Time
	EndDate    *time.Time
}

// Client is the minimal client record used for labeling scan output
type Client struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ReportScore is one persisted report's health score, used by the
// health-score trend analysis
type ReportScore struct {
	ReportDate  time.Time `json:"report_date"`
	HealthScore *float64  `json:"health_score,omitempty"`
}
