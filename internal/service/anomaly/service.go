package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rankwise/analytics-core/internal/domain/errors"
	"github.com/rankwise/analytics-core/internal/domain/stats"
	"github.com/rankwise/analytics-core/internal/infrastructure/telemetry"
	"github.com/rankwise/analytics-core/internal/metrics"
)

const (
	// minimum series length before any statistical scan runs
	minScanSamples = 7
	// smoothing factor for the traffic EMA baseline
	emaAlpha = 0.3
	// a drop worse than this many positions escalates to critical
	criticalDropPositions = 10
	// ScanAll limits itself to the most recently seen metric names
	maxScanMetrics = 10
)

// service implements the Service interface
type service struct {
	repo     StatsRepository
	cfg      Config
	logger   *zap.Logger
	registry *metrics.Registry
	tracer   trace.Tracer
}

// NewService creates a new anomaly detection service. The config is
// immutable after construction; every method is a pure function of its
// repository query results.
func NewService(repo StatsRepository, cfg Config, logger *zap.Logger, registry *metrics.Registry) Service {
	return &service{
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tracer:   otel.Tracer("anomaly-detector"),
	}
}

// DetectMetricAnomalies flags points whose z-score against the window mean
// exceeds the threshold. Series shorter than seven points, or with zero
// variance, yield no anomalies rather than an error.
func (s *service) DetectMetricAnomalies(ctx context.Context, clientID uuid.UUID, metricName string) ([]stats.Anomaly, error) {
	start := time.Now().AddDate(0, 0, -s.cfg.MetricWindowDays)
	samples, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{
		MetricName: metricName,
		StartDate:  &start,
	})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get metrics").WithCause(err)
	}
	if len(samples) < minScanSamples {
		return []stats.Anomaly{}, nil
	}

	// the repository returns newest first; the scan walks chronologically
	ordered := make([]stats.MetricSample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	values := make([]float64, len(ordered))
	for i, m := range ordered {
		values[i] = m.Value
	}

	avg := stats.Mean(values)
	std := stats.PopStdDev(values)
	if std == 0 {
		return []stats.Anomaly{}, nil
	}

	anomalies := make([]stats.Anomaly, 0)
	for i, value := range values {
		z := math.Abs((value - avg) / std)
		if z <= s.cfg.ZScoreThreshold {
			continue
		}

		// expected value follows the recent trend when enough points
		// precede the flagged one
		expected := avg
		if i >= minScanSamples {
			expected = stats.Mean(values[i-minScanSamples : i])
		}

		deviation := stats.ChangePercent(value, expected)

		kind := stats.AnomalyDrop
		if value > expected {
			kind = stats.AnomalySpike
		}

		a := stats.Anomaly{
			ClientID:         clientID,
			MetricName:       metricName,
			Date:             ordered[i].Date,
			ExpectedValue:    stats.Round2(expected),
			ActualValue:      value,
			DeviationPercent: stats.Round2(deviation),
			ZScore:           stats.Round2(z),
			Kind:             kind,
			Severity:         stats.SeverityForDeviation(math.Abs(deviation)),
		}
		anomalies = append(anomalies, a)
		s.persistAnomaly(ctx, a)
	}

	s.countAnomalies(ctx, "metric", anomalies)
	return anomalies, nil
}

// DetectTrafficAnomalies compares each traffic point against an
// exponential moving average of everything before it. This captures
// drift-relative anomalies, distinct from the absolute z-score method used
// for metrics.
func (s *service) DetectTrafficAnomalies(ctx context.Context, clientID uuid.UUID) ([]stats.Anomaly, error) {
	traffic, err := s.repo.GetTrafficTrend(ctx, clientID, s.cfg.TrafficWindowDays)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get traffic trend").WithCause(err)
	}
	if len(traffic) < minScanSamples {
		return []stats.Anomaly{}, nil
	}

	sessions := make([]float64, len(traffic))
	for i, t := range traffic {
		sessions[i] = t.Sessions
	}
	ema := stats.EMA(sessions, emaAlpha)

	anomalies := make([]stats.Anomaly, 0)
	for i := 1; i < len(sessions); i++ {
		baseline := ema[i-1]
		if baseline == 0 {
			continue
		}

		diff := stats.ChangePercent(sessions[i], baseline)
		if math.Abs(diff) <= s.cfg.PercentChangeThreshold {
			continue
		}

		kind := stats.AnomalyDrop
		if diff > 0 {
			kind = stats.AnomalySpike
		}

		a := stats.Anomaly{
			ClientID:         clientID,
			MetricName:       "traffic_sessions",
			Date:             traffic[i].Date,
			ExpectedValue:    stats.Round2(baseline),
			ActualValue:      sessions[i],
			DeviationPercent: stats.Round2(diff),
			Kind:             kind,
			Severity:         stats.SeverityForDeviation(math.Abs(diff)),
		}
		anomalies = append(anomalies, a)
		s.persistAnomaly(ctx, a)
	}

	s.countAnomalies(ctx, "traffic", anomalies)
	return anomalies, nil
}

// DetectRankingDrops flags top keywords whose position change fell past the
// threshold, sorted by drop magnitude
func (s *service) DetectRankingDrops(ctx context.Context, clientID uuid.UUID) ([]RankingDrop, error) {
	keywords, err := s.repo.GetTopKeywords(ctx, clientID, 100)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get top keywords").WithCause(err)
	}

	drops := make([]RankingDrop, 0)
	for _, kw := range keywords {
		if kw.PositionChange == nil || *kw.PositionChange >= -s.cfg.PositionThreshold {
			continue
		}

		history, err := s.repo.GetKeywordHistory(ctx, clientID, kw.Keyword)
		if err != nil {
			return nil, errors.NewUpstreamError("failed to get keyword history").WithCause(err)
		}
		if len(history) < 2 {
			continue
		}

		current := history[len(history)-1]
		previous := history[len(history)-2]

		severity := stats.SeverityHigh
		if math.Abs(*kw.PositionChange) > criticalDropPositions {
			severity = stats.SeverityCritical
		}

		drops = append(drops, RankingDrop{
			Keyword:          kw.Keyword,
			CurrentPosition:  current.Position,
			PreviousPosition: previous.Position,
			PositionDrop:     math.Abs(*kw.PositionChange),
			ClicksLost:       previous.Clicks - current.Clicks,
			Severity:         severity,
			DetectedAt:       time.Now().UTC(),
		})
	}

	sort.Slice(drops, func(i, j int) bool { return drops[i].PositionDrop > drops[j].PositionDrop })
	return drops, nil
}

// DetectCannibalization finds keywords where several distinct URLs of the
// same site rank at once
func (s *service) DetectCannibalization(ctx context.Context, clientID uuid.UUID) ([]CannibalizationIssue, error) {
	keywords, err := s.repo.GetTopKeywords(ctx, clientID, 200)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get top keywords").WithCause(err)
	}

	byKeyword := make(map[string][]CompetingURL)
	seen := make(map[string]map[string]bool)
	order := make([]string, 0)

	for _, kw := range keywords {
		if kw.URL == "" {
			continue
		}
		if seen[kw.Keyword] == nil {
			seen[kw.Keyword] = make(map[string]bool)
			order = append(order, kw.Keyword)
		}
		if seen[kw.Keyword][kw.URL] {
			continue
		}
		seen[kw.Keyword][kw.URL] = true
		byKeyword[kw.Keyword] = append(byKeyword[kw.Keyword], CompetingURL{
			URL:      kw.URL,
			Position: kw.Position,
			Clicks:   kw.Clicks,
		})
	}

	issues := make([]CannibalizationIssue, 0)
	for _, keyword := range order {
		urls := byKeyword[keyword]
		if len(urls) < 2 {
			continue
		}

		sort.Slice(urls, func(i, j int) bool {
			return positionOrMax(urls[i].Position) < positionOrMax(urls[j].Position)
		})

		severity := stats.SeverityMedium
		if len(urls) > 2 {
			severity = stats.SeverityHigh
		}

		issues = append(issues, CannibalizationIssue{
			Keyword:       keyword,
			CompetingURLs: len(urls),
			BestPosition:  urls[0].Position,
			WorstPosition: urls[len(urls)-1].Position,
			URLs:          urls,
			Severity:      severity,
		})
	}

	return issues, nil
}

// ScanAll runs every detection method and buckets the findings by severity
func (s *service) ScanAll(ctx context.Context, clientID uuid.UUID) (*ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "anomaly.scan_all",
		trace.WithAttributes(attribute.String("client_id", clientID.String())))
	defer span.End()

	started := time.Now()

	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get client").WithCause(err)
	}
	if client == nil {
		return nil, errors.NewNotFoundError("client")
	}

	all, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to list metrics").WithCause(err)
	}

	seen := make(map[string]bool)
	names := make([]string, 0, maxScanMetrics)
	for _, m := range all {
		if seen[m.MetricName] {
			continue
		}
		seen[m.MetricName] = true
		names = append(names, m.MetricName)
		if len(names) == maxScanMetrics {
			break
		}
	}

	anomalies := make([]stats.Anomaly, 0)
	for _, name := range names {
		found, err := s.DetectMetricAnomalies(ctx, clientID, name)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, found...)
	}

	trafficAnomalies, err := s.DetectTrafficAnomalies(ctx, clientID)
	if err != nil {
		return nil, err
	}
	anomalies = append(anomalies, trafficAnomalies...)

	drops, err := s.DetectRankingDrops(ctx, clientID)
	if err != nil {
		return nil, err
	}

	cannibalization, err := s.DetectCannibalization(ctx, clientID)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		ClientName: client.Name,
		ScanDate:   time.Now().UTC(),
	}

	for _, a := range anomalies {
		switch a.Severity {
		case stats.SeverityCritical:
			result.CriticalIssues = append(result.CriticalIssues, a)
		case stats.SeverityHigh:
			result.HighPriority = append(result.HighPriority, a)
		default:
			result.MediumPriority = append(result.MediumPriority, a)
		}
	}

	critical := len(result.CriticalIssues)
	high := len(result.HighPriority)
	for _, d := range drops {
		if d.Severity == stats.SeverityCritical {
			critical++
		} else {
			high++
		}
	}

	result.Summary = ScanSummary{
		TotalAnomalies:        len(anomalies),
		RankingDrops:          len(drops),
		CannibalizationIssues: len(cannibalization),
		CriticalCount:         critical,
		HighCount:             high,
		MediumCount:           len(result.MediumPriority),
	}
	result.RankingDrops = drops[:minInt(10, len(drops))]
	result.Cannibalization = cannibalization[:minInt(5, len(cannibalization))]
	result.Recommendations = buildRecommendations(result.CriticalIssues, result.HighPriority, drops, cannibalization)

	s.registry.ScanDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	telemetry.LoggerWithTrace(ctx, s.logger).Info("anomaly scan completed",
		zap.String("client", client.Name),
		zap.Int("anomalies", len(anomalies)),
		zap.Int("ranking_drops", len(drops)),
		zap.Int("cannibalization", len(cannibalization)))

	return result, nil
}

// GenerateAlerts flattens a scan into a prioritized alert list with fixed
// action tags: every critical anomaly, the worst five ranking drops, and
// the top three cannibalization issues
func (s *service) GenerateAlerts(ctx context.Context, clientID uuid.UUID) ([]Alert, error) {
	scan, err := s.ScanAll(ctx, clientID)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0)

	for _, issue := range scan.CriticalIssues {
		alerts = append(alerts, Alert{
			Type:     "critical_anomaly",
			Title:    fmt.Sprintf("Critical %s in %s", issue.Kind, issue.MetricName),
			Message:  fmt.Sprintf("Detected %.2f%% deviation on %s", issue.DeviationPercent, issue.Date.Format("2006-01-02")),
			Action:   ActionInvestigate,
			Priority: 1,
		})
	}

	for _, drop := range scan.RankingDrops[:minInt(5, len(scan.RankingDrops))] {
		msg := fmt.Sprintf("Dropped %.0f positions", drop.PositionDrop)
		if drop.CurrentPosition != nil {
			msg = fmt.Sprintf("Dropped %.0f positions (now #%.0f)", drop.PositionDrop, *drop.CurrentPosition)
		}
		alerts = append(alerts, Alert{
			Type:     "ranking_drop",
			Title:    fmt.Sprintf("Ranking drop for %q", drop.Keyword),
			Message:  msg,
			Action:   ActionReviewPage,
			Priority: 2,
		})
	}

	for _, issue := range scan.Cannibalization[:minInt(3, len(scan.Cannibalization))] {
		alerts = append(alerts, Alert{
			Type:     "cannibalization",
			Title:    fmt.Sprintf("Keyword cannibalization: %q", issue.Keyword),
			Message:  fmt.Sprintf("%d URLs competing for this keyword", issue.CompetingURLs),
			Action:   ActionConsolidate,
			Priority: 3,
		})
	}

	return alerts, nil
}

// Helpers

// persistAnomaly writes the audit row. Failures are logged, never fatal:
// the scan result is the source of truth.
func (s *service) persistAnomaly(ctx context.Context, a stats.Anomaly) {
	if err := s.repo.SaveAnomaly(ctx, a); err != nil {
		s.logger.Warn("failed to persist anomaly",
			zap.String("metric", a.MetricName),
			zap.Time("date", a.Date),
			zap.Error(err))
	}
}

func (s *service) countAnomalies(ctx context.Context, source string, anomalies []stats.Anomaly) {
	for _, a := range anomalies {
		s.registry.AnomaliesDetected.Add(ctx, 1, metrics.WithAttrs(
			attribute.String("source", source),
			attribute.String("severity", string(a.Severity)),
		))
	}
}

func buildRecommendations(critical, high []stats.Anomaly, drops []RankingDrop, cannibalization []CannibalizationIssue) []string {
	recs := make([]string, 0, 4)

	if len(critical) > 0 {
		recs = append(recs, "Urgent: investigate critical anomalies immediately - check for technical issues, algorithm updates, or data collection problems")
	}
	if len(drops) > 0 {
		recs = append(recs, "Review pages with ranking drops for content quality, technical issues, and competitor changes")
	}
	if len(cannibalization) > 0 {
		recs = append(recs, "Address keyword cannibalization by consolidating similar pages or differentiating content focus")
	}
	if len(high) > 5 {
		recs = append(recs, "Multiple high-priority issues detected - prioritize investigation and allocate resources accordingly")
	}
	if len(critical) == 0 && len(high) == 0 && len(drops) == 0 {
		recs = append(recs, "No critical issues detected - continue monitoring trends")
	}

	return recs
}

func positionOrMax(p *float64) float64 {
	if p == nil {
		return math.MaxFloat64
	}
	return *p
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
