package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the batch analyzer

var (
	clientScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankwise",
			Subsystem: "analyzer",
			Name:      "client_scans_total",
			Help:      "Total number of per-client analysis runs",
		},
		[]string{"status"},
	)

	clientScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rankwise",
			Subsystem: "analyzer",
			Name:      "client_scan_duration_seconds",
			Help:      "Duration of a full per-client analysis run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	anomaliesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankwise",
			Subsystem: "analyzer",
			Name:      "anomalies_found_total",
			Help:      "Total number of anomalies found across scans",
		},
		[]string{"severity"},
	)

	dbConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "connections",
			Help:      "Current number of connections in the pool",
		},
		[]string{"state"},
	)
)

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordClientScan records the outcome and duration of one client run
func RecordClientScan(status string, duration time.Duration) {
	clientScansTotal.WithLabelValues(status).Inc()
	clientScanDuration.Observe(duration.Seconds())
}

// RecordAnomaliesFound adds per-severity anomaly counts from a scan
func RecordAnomaliesFound(severity string, count int) {
	if count > 0 {
		anomaliesFound.WithLabelValues(severity).Add(float64(count))
	}
}

// UpdateDBConnectionPoolMetrics updates database connection pool gauges
func UpdateDBConnectionPoolMetrics(active, idle, total int) {
	dbConnectionPoolSize.WithLabelValues("active").Set(float64(active))
	dbConnectionPoolSize.WithLabelValues("idle").Set(float64(idle))
	dbConnectionPoolSize.WithLabelValues("total").Set(float64(total))
}
