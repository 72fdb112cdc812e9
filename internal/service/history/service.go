package history

import (
	"context"
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
)

const (
	// year-over-year compares 30-day window averages
	comparisonWindowDays = 30
	// concerning-trend summaries look back three months
	concernWindowMonths = 3
	// winners/losers lists carry at most this many keywords
	topListSize = 10
)

// service implements the Service interface
type service struct {
	repo   StatsRepository
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new historical analysis service
func NewService(repo StatsRepository, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("historical-analyzer"),
		now:    time.Now,
	}
}

// CompareMonthOverMonth compares the two most recent samples of a metric
func (s *service) CompareMonthOverMonth(ctx context.Context, clientID uuid.UUID, metricName string) (*MonthOverMonth, error) {
	samples, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{MetricName: metricName})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get metrics").WithCause(err)
	}
	if len(samples) < 2 {
		return nil, errors.NewInsufficientDataError("need at least 2 samples for a month-over-month comparison")
	}

	current, previous := samples[0], samples[1]
	if previous.Value == 0 {
		return nil, errors.NewInsufficientDataError("previous period value is zero")
	}

	change := current.Value - previous.Value
	return &MonthOverMonth{
		Metric:        metricName,
		CurrentValue:  current.Value,
		CurrentDate:   current.Date,
		PreviousValue: previous.Value,
		PreviousDate:  previous.Date,
		Change:        change,
		ChangePercent: stats.Round2(stats.ChangePercent(current.Value, previous.Value)),
		Trend:         trendForChange(change),
	}, nil
}

// CompareYearOverYear compares the current 30-day average against the same
// window a year ago
func (s *service) CompareYearOverYear(ctx context.Context, clientID uuid.UUID, metricName string) (*YearOverYear, error) {
	today := s.now()
	currentStart := today.AddDate(0, 0, -comparisonWindowDays)
	yearAgo := today.AddDate(0, 0, -365)
	yearAgoStart := yearAgo.AddDate(0, 0, -comparisonWindowDays)

	current, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{
		MetricName: metricName,
		StartDate:  &currentStart,
	})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get current metrics").WithCause(err)
	}

	previous, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{
		MetricName: metricName,
		StartDate:  &yearAgoStart,
		EndDate:    &yearAgo,
	})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get year-ago metrics").WithCause(err)
	}

	if len(current) == 0 || len(previous) == 0 {
		return nil, errors.NewInsufficientDataError("missing samples for one of the comparison windows")
	}

	currentAvg := stats.Mean(sampleValues(current))
	yearAgoAvg := stats.Mean(sampleValues(previous))
	if yearAgoAvg == 0 {
		return nil, errors.NewInsufficientDataError("year-ago average is zero")
	}

	change := currentAvg - yearAgoAvg
	return &YearOverYear{
		Metric:         metricName,
		CurrentAverage: stats.Round2(currentAvg),
		YearAgoAverage: stats.Round2(yearAgoAvg),
		Change:         stats.Round2(change),
		ChangePercent:  stats.Round2(stats.ChangePercent(currentAvg, yearAgoAvg)),
		Trend:          trendForChange(change),
	}, nil
}

// MetricSummary aggregates a metric over the given month window
func (s *service) MetricSummary(ctx context.Context, clientID uuid.UUID, metricName string, months int) (*MetricSummary, error) {
	samples, err := s.repo.GetMetricTrend(ctx, clientID, metricName, months)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get metric trend").WithCause(err)
	}
	if len(samples) == 0 {
		return nil, errors.NewInsufficientDataError("no data available for this metric")
	}

	values := sampleValues(samples)

	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	return &MetricSummary{
		Metric:         metricName,
		PeriodMonths:   months,
		CurrentValue:   values[len(values)-1],
		MinValue:       minV,
		MaxValue:       maxV,
		AverageValue:   stats.Round2(stats.Mean(values)),
		StdDeviation:   stats.Round2(stats.SampleStdDev(values)),
		TrendDirection: stats.TrendOf(values),
		Volatility:     stats.VolatilityOf(values),
		DataPoints:     len(values),
		Timeline:       samples,
	}, nil
}

// AnalyzeKeywordTrends summarizes a keyword's full tracked history
func (s *service) AnalyzeKeywordTrends(ctx context.Context, clientID uuid.UUID, keyword string) (*KeywordTrend, error) {
	hist, err := s.repo.GetKeywordHistory(ctx, clientID, keyword)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get keyword history").WithCause(err)
	}
	if len(hist) == 0 {
		return nil, errors.NewInsufficientDataError("no historical data for this keyword")
	}

	positions := make([]float64, 0, len(hist))
	for _, h := range hist {
		if h.Position != nil {
			positions = append(positions, *h.Position)
		}
	}

	var totalClicks int64
	clickCount := 0
	for _, h := range hist {
		if h.Clicks > 0 {
			totalClicks += h.Clicks
			clickCount++
		}
	}
	avgClicks := 0.0
	if clickCount > 0 {
		avgClicks = stats.Round2(float64(totalClicks) / float64(clickCount))
	}

	first, last := hist[0], hist[len(hist)-1]

	result := &KeywordTrend{
		Keyword:         keyword,
		FirstTracked:    first.Date,
		LastTracked:     last.Date,
		CurrentPosition: last.Position,
		TotalClicks:     totalClicks,
		AvgClicks:       avgClicks,
		Trend:           stats.TrendOf(positions),
		History:         hist,
	}

	if len(positions) > 0 {
		best, worst := positions[0], positions[0]
		for _, p := range positions[1:] {
			if p < best {
				best = p
			}
			if p > worst {
				worst = p
			}
		}
		avg := stats.Round2(stats.Mean(positions))
		result.BestPosition = &best
		result.WorstPosition = &worst
		result.AveragePosition = &avg
	}
	// positive improvement means the keyword moved up the rankings
	if len(positions) > 1 && first.Position != nil && last.Position != nil {
		result.PositionImprovement = *first.Position - *last.Position
	}

	return result, nil
}

// CompareKeywordPeriods compares each top keyword's latest observation
// with the most recent one at or before the cutoff. When nothing predates
// the cutoff the earliest observation stands in, which can bias the
// reading for newly tracked keywords.
func (s *service) CompareKeywordPeriods(ctx context.Context, clientID uuid.UUID, daysBack int) (*KeywordPeriodComparison, error) {
	cutoff := s.now().AddDate(0, 0, -daysBack)

	keywords, err := s.repo.GetTopKeywords(ctx, clientID, 100)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get top keywords").WithCause(err)
	}

	comparisons := make([]KeywordComparison, 0, len(keywords))
	for _, kw := range keywords {
		hist, err := s.repo.GetKeywordHistory(ctx, clientID, kw.Keyword)
		if err != nil {
			return nil, errors.NewUpstreamError("failed to get keyword history").WithCause(err)
		}
		if len(hist) < 2 {
			continue
		}

		current := hist[len(hist)-1]
		previous := hist[0]
		for i := len(hist) - 2; i >= 0; i-- {
			if !hist[i].Date.After(cutoff) {
				previous = hist[i]
				break
			}
		}

		positionChange := positionOrZero(previous.Position) - positionOrZero(current.Position)
		clicksChange := current.Clicks - previous.Clicks

		status := StatusStable
		if positionChange > 0 {
			status = StatusImproved
		} else if positionChange < 0 {
			status = StatusDeclined
		}

		comparisons = append(comparisons, KeywordComparison{
			Keyword:          kw.Keyword,
			CurrentPosition:  current.Position,
			PreviousPosition: previous.Position,
			PositionChange:   stats.Round1(positionChange),
			CurrentClicks:    current.Clicks,
			PreviousClicks:   previous.Clicks,
			ClicksChange:     clicksChange,
			Status:           status,
		})
	}

	// weighted impact: position movement dominates, clicks break ties
	sort.SliceStable(comparisons, func(i, j int) bool {
		return comparisons[i].PositionChange*10+float64(comparisons[i].ClicksChange) >
			comparisons[j].PositionChange*10+float64(comparisons[j].ClicksChange)
	})

	result := &KeywordPeriodComparison{
		PeriodDays:    daysBack,
		TotalKeywords: len(comparisons),
		All:           comparisons,
	}
	for _, c := range comparisons {
		switch c.Status {
		case StatusImproved:
			result.Improved++
			if len(result.TopWinners) < topListSize {
				result.TopWinners = append(result.TopWinners, c)
			}
		case StatusDeclined:
			result.Declined++
			if len(result.TopLosers) < topListSize {
				result.TopLosers = append(result.TopLosers, c)
			}
		default:
			result.Stable++
		}
	}

	return result, nil
}

// HealthScoreTrend tracks the persisted report health score over time
func (s *service) HealthScoreTrend(ctx context.Context, clientID uuid.UUID, months int) (*HealthTrend, error) {
	reports, err := s.repo.GetReports(ctx, clientID, months)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get reports").WithCause(err)
	}

	scores := make([]ScorePoint, 0, len(reports))
	for _, r := range reports {
		if r.HealthScore != nil {
			scores = append(scores, ScorePoint{Date: r.ReportDate, Score: *r.HealthScore})
		}
	}
	if len(scores) == 0 {
		return nil, errors.NewInsufficientDataError("no health score data available")
	}

	values := make([]float64, len(scores))
	for i, sc := range scores {
		values[i] = sc.Score
	}

	best, worst := values[0], values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
		if v < worst {
			worst = v
		}
	}

	improvement := 0.0
	if len(scores) > 1 {
		// reports come newest first
		improvement = scores[0].Score - scores[len(scores)-1].Score
	}

	return &HealthTrend{
		CurrentScore: scores[0].Score,
		AverageScore: stats.Round2(stats.Mean(values)),
		BestScore:    best,
		WorstScore:   worst,
		Improvement:  improvement,
		Trend:        stats.TrendOf(values),
		History:      scores,
	}, nil
}

// TopImprovements finds the metrics with the biggest month-over-month
// movement in either direction
func (s *service) TopImprovements(ctx context.Context, clientID uuid.UUID, limit int) ([]Improvement, error) {
	names, err := s.metricNames(ctx, clientID)
	if err != nil {
		return nil, err
	}

	improvements := make([]Improvement, 0, len(names))
	for _, name := range names {
		comparison, err := s.CompareMonthOverMonth(ctx, clientID, name)
		if err != nil {
			if errors.IsInsufficientData(err) {
				continue
			}
			return nil, err
		}
		if comparison.ChangePercent == 0 {
			continue
		}
		improvements = append(improvements, Improvement{
			Metric:        name,
			ChangePercent: comparison.ChangePercent,
			ChangeValue:   comparison.Change,
			CurrentValue:  comparison.CurrentValue,
		})
	}

	sort.Slice(improvements, func(i, j int) bool {
		return absFloat(improvements[i].ChangePercent) > absFloat(improvements[j].ChangePercent)
	})

	if limit > 0 && len(improvements) > limit {
		improvements = improvements[:limit]
	}
	return improvements, nil
}

// ConcerningTrends finds metrics trending down over the last three months
func (s *service) ConcerningTrends(ctx context.Context, clientID uuid.UUID) ([]Concern, error) {
	names, err := s.metricNames(ctx, clientID)
	if err != nil {
		return nil, err
	}

	concerns := make([]Concern, 0)
	for _, name := range names {
		summary, err := s.MetricSummary(ctx, clientID, name, concernWindowMonths)
		if err != nil {
			if errors.IsInsufficientData(err) {
				continue
			}
			return nil, err
		}
		if summary.TrendDirection != stats.TrendDown {
			continue
		}

		severity := stats.SeverityMedium
		if summary.Volatility == stats.VolatilityHigh {
			severity = stats.SeverityHigh
		}
		concerns = append(concerns, Concern{
			Metric:       name,
			Trend:        summary.TrendDirection,
			Volatility:   summary.Volatility,
			Severity:     severity,
			CurrentValue: summary.CurrentValue,
			Average:      summary.AverageValue,
		})
	}

	sort.SliceStable(concerns, func(i, j int) bool {
		return concerns[i].Severity.Rank() > concerns[j].Severity.Rank()
	})
	return concerns, nil
}

// TrendReport composes the full historical analysis for a client. A
// missing health score history omits that section rather than failing
// the report.
func (s *service) TrendReport(ctx context.Context, clientID uuid.UUID) (*TrendReport, error) {
	ctx, span := s.tracer.Start(ctx, "history.trend_report",
		trace.WithAttributes(attribute.String("client_id", clientID.String())))
	defer span.End()

	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get client").WithCause(err)
	}
	if client == nil {
		return nil, errors.NewNotFoundError("client")
	}

	health, err := s.HealthScoreTrend(ctx, clientID, 6)
	if err != nil && !errors.IsInsufficientData(err) {
		return nil, err
	}

	improvements, err := s.TopImprovements(ctx, clientID, topListSize)
	if err != nil {
		return nil, err
	}

	concerns, err := s.ConcerningTrends(ctx, clientID)
	if err != nil {
		return nil, err
	}

	keywords, err := s.CompareKeywordPeriods(ctx, clientID, comparisonWindowDays)
	if err != nil {
		return nil, err
	}

	positive := 0
	for _, imp := range improvements {
		if imp.ChangePercent > 0 {
			positive++
		}
	}

	overall := "declining"
	if len(improvements) > len(concerns) {
		overall = "improving"
	}

	telemetry.LoggerWithTrace(ctx, s.logger).Info("trend report generated",
		zap.String("client", client.Name),
		zap.Int("improvements", len(improvements)),
		zap.Int("concerns", len(concerns)))

	return &TrendReport{
		ClientName:       client.Name,
		GeneratedAt:      s.now().UTC(),
		HealthScoreTrend: health,
		TopImprovements:  improvements,
		ConcerningTrends: concerns,
		KeywordPerformance: KeywordPerformance{
			Improved:   keywords.Improved,
			Declined:   keywords.Declined,
			TopWinners: keywords.TopWinners,
			TopLosers:  keywords.TopLosers,
		},
		Summary: ReportSummary{
			TotalMetricsTracked: len(improvements) + len(concerns),
			PositiveTrends:      positive,
			NegativeTrends:      len(concerns),
			OverallHealth:       overall,
		},
	}, nil
}

// Helpers

func (s *service) metricNames(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	samples, err := s.repo.GetMetrics(ctx, clientID, stats.MetricQuery{})
	if err != nil {
		return nil, errors.NewUpstreamError("failed to list metrics").WithCause(err)
	}

	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, m := range samples {
		if !seen[m.MetricName] {
			seen[m.MetricName] = true
			names = append(names, m.MetricName)
		}
	}
	return names, nil
}

func sampleValues(samples []stats.MetricSample) []float64 {
	values := make([]float64, len(samples))
	for i, m := range samples {
		values[i] = m.Value
	}
	return values
}

func trendForChange(change float64) stats.Trend {
	switch {
	case change > 0:
		return stats.TrendUp
	case change < 0:
		return stats.TrendDown
	default:
		return stats.TrendFlat
	}
}

func positionOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
