package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the engine instrumentation. Without a meter provider
// installed every instrument is a no-op, so library embedders pay nothing.
type Registry struct {
	meter metric.Meter

	// Forecasting
	ForecastsGenerated metric.Int64Counter
	ForecastDuration   metric.Float64Histogram

	// Anomaly detection
	AnomaliesDetected metric.Int64Counter
	ScanDuration      metric.Float64Histogram

	// Prioritization
	RecommendationsScored metric.Int64Counter
}

// NewRegistry creates a new metrics registry for the analytics engines
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	r.ForecastsGenerated, err = meter.Int64Counter(
		"rankwise.forecast.generated_total",
		metric.WithDescription("Number of forecasts generated, by model"),
	)
	if err != nil {
		return nil, err
	}

	r.ForecastDuration, err = meter.Float64Histogram(
		"rankwise.forecast.duration",
		metric.WithDescription("Duration of forecast computation in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500),
	)
	if err != nil {
		return nil, err
	}

	r.AnomaliesDetected, err = meter.Int64Counter(
		"rankwise.anomaly.detected_total",
		metric.WithDescription("Number of anomalies flagged, by kind and severity"),
	)
	if err != nil {
		return nil, err
	}

	r.ScanDuration, err = meter.Float64Histogram(
		"rankwise.anomaly.scan_duration",
		metric.WithDescription("Duration of comprehensive anomaly scans in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.RecommendationsScored, err = meter.Int64Counter(
		"rankwise.prioritize.scored_total",
		metric.WithDescription("Number of recommendation records scored"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// WithAttrs is shorthand for attaching attributes to a measurement
func WithAttrs(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(attrs...)
}
