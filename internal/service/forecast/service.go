package forecast

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rankwise/analytics-core/internal/domain/errors"
	"github.com/rankwise/analytics-core/internal/domain/stats"
	"github.com/rankwise/analytics-core/internal/metrics"
)

const (
	// metric forecasts look back six months of trend data
	trendWindowMonths = 6
	// traffic forecasts look back 90 days
	trafficWindowDays = 90
	// results carry at most the first 30 projected days
	returnHorizon = 30
	// keyword trend rate is computed over the most recent observations
	keywordTrendWindow = 10
	// day-of-week seasonality needs two full weeks
	seasonalMinSamples = 14
	// 95% confidence interval
	ciZ = 1.96
)

// service implements the Service interface
type service struct {
	repo     MetricRepository
	logger   *zap.Logger
	registry *metrics.Registry
}

// NewService creates a new forecasting service
func NewService(repo MetricRepository, logger *zap.Logger, registry *metrics.Registry) Service {
	return &service{
		repo:     repo,
		logger:   logger,
		registry: registry,
	}
}

// ForecastLinear fits ordinary least squares on the metric's six-month
// trend and projects it daysAhead days forward with 95% intervals
func (s *service) ForecastLinear(ctx context.Context, clientID uuid.UUID, metricName string, daysAhead int) (*LinearForecast, error) {
	if daysAhead <= 0 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "days ahead must be positive")
	}

	started := time.Now()
	samples, err := s.repo.GetMetricTrend(ctx, clientID, metricName, trendWindowMonths)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get metric trend").WithCause(err)
	}
	if len(samples) < 3 {
		return nil, errors.NewInsufficientDataError("need at least 3 data points for a linear forecast")
	}

	values := make([]float64, len(samples))
	for i, m := range samples {
		values[i] = m.Value
	}

	fit, ok := stats.FitLinear(values)
	if !ok {
		return nil, errors.NewInsufficientDataError("cannot fit a trend to the series")
	}

	stdErr := fit.StdError()
	lastDate := samples[len(samples)-1].Date

	points := make([]stats.ForecastPoint, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		x := float64(fit.N + day - 1)
		predicted := fit.Predict(x)
		margin := ciZ * stdErr * math.Sqrt(1+1/float64(fit.N)+(x-fit.XMean)*(x-fit.XMean)/fit.SXX)

		points = append(points, clampPoint(
			lastDate.AddDate(0, 0, day),
			predicted, predicted-margin, predicted+margin,
			"linear",
		))
	}

	// Audit write only: a failed save never fails the forecast.
	if err := s.repo.SaveForecast(ctx, clientID, metricName, points); err != nil {
		s.logger.Warn("failed to persist forecast",
			zap.String("client_id", clientID.String()),
			zap.String("metric", metricName),
			zap.Error(err))
	}

	s.registry.ForecastsGenerated.Add(ctx, 1, metrics.WithAttrs(attribute.String("model", "linear")))
	s.registry.ForecastDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metrics.WithAttrs(attribute.String("model", "linear")))

	return &LinearForecast{
		Metric:         metricName,
		Model:          "linear_regression",
		RSquared:       fit.RSquared,
		Confidence:     confidenceForR2(fit.RSquared),
		Slope:          fit.Slope,
		Trend:          trendForSlope(fit.Slope),
		Forecasts:      points[:minInt(returnHorizon, len(points))],
		TotalForecasts: len(points),
	}, nil
}

// ForecastMovingAverage projects the mean of the last window points flat
// across the horizon. Explicitly short-horizon: it does not extrapolate
// the trend.
func (s *service) ForecastMovingAverage(ctx context.Context, clientID uuid.UUID, metricName string, window, daysAhead int) (*MovingAverageForecast, error) {
	if window < 2 {
		return nil, errors.NewValidationError("INVALID_WINDOW", "window must be at least 2")
	}
	if daysAhead <= 0 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "days ahead must be positive")
	}

	started := time.Now()
	samples, err := s.repo.GetMetricTrend(ctx, clientID, metricName, trendWindowMonths)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get metric trend").WithCause(err)
	}
	if len(samples) < window {
		return nil, errors.NewInsufficientDataError("series shorter than the moving-average window")
	}

	recent := make([]float64, 0, window)
	for _, m := range samples[len(samples)-window:] {
		recent = append(recent, m.Value)
	}

	baseline := stats.Mean(recent)
	band := ciZ * stats.SampleStdDev(recent)
	lastDate := samples[len(samples)-1].Date

	points := make([]stats.ForecastPoint, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		points = append(points, clampPoint(
			lastDate.AddDate(0, 0, day),
			baseline, baseline-band, baseline+band,
			"moving_average",
		))
	}

	s.registry.ForecastsGenerated.Add(ctx, 1, metrics.WithAttrs(attribute.String("model", "moving_average")))
	s.registry.ForecastDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metrics.WithAttrs(attribute.String("model", "moving_average")))

	return &MovingAverageForecast{
		Metric:        metricName,
		Model:         "moving_average",
		WindowSize:    window,
		BaselineValue: stats.Round2(baseline),
		Forecasts:     points,
	}, nil
}

// ForecastKeywordPosition extrapolates a keyword's daily ranking change,
// keeping every projected position inside [1, 100]
func (s *service) ForecastKeywordPosition(ctx context.Context, clientID uuid.UUID, keyword string, daysAhead int) (*KeywordForecast, error) {
	if daysAhead <= 0 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "days ahead must be positive")
	}

	started := time.Now()
	history, err := s.repo.GetKeywordHistory(ctx, clientID, keyword)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get keyword history").WithCause(err)
	}

	positions := make([]float64, 0, len(history))
	for _, h := range history {
		if h.Position != nil {
			positions = append(positions, *h.Position)
		}
	}
	if len(positions) < 5 {
		return nil, errors.NewInsufficientDataError("need at least 5 ranked observations for a position forecast")
	}

	window := positions
	if len(window) > keywordTrendWindow {
		window = window[len(window)-keywordTrendWindow:]
	}
	totalChange := window[len(window)-1] - window[0]
	dailyChange := totalChange / float64(len(window))

	trend := stats.TrendFlat
	if totalChange > 0 {
		trend = stats.TrendUp
	} else if totalChange < 0 {
		trend = stats.TrendDown
	}

	current := positions[len(positions)-1]
	lastDate := history[len(history)-1].Date

	projected := current
	points := make([]PositionPoint, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		projected = math.Max(1, math.Min(100, projected+dailyChange))
		points = append(points, PositionPoint{
			Date:              lastDate.AddDate(0, 0, day),
			PredictedPosition: stats.Round1(projected),
		})
	}

	result := &KeywordForecast{
		Keyword:         keyword,
		CurrentPosition: current,
		Trend:           trend,
		Forecasts:       points,
	}
	if len(points) >= returnHorizon {
		p30 := points[returnHorizon-1].PredictedPosition
		result.ForecastedPosition30 = &p30
		result.ExpectedChange = p30 - current
	}

	s.registry.ForecastsGenerated.Add(ctx, 1, metrics.WithAttrs(attribute.String("model", "keyword_position")))
	s.registry.ForecastDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metrics.WithAttrs(attribute.String("model", "keyword_position")))

	return result, nil
}

// ForecastTraffic fits a linear baseline over the 90-day traffic trend and,
// when at least two weeks of samples exist, scales it by a per-weekday
// seasonal factor
func (s *service) ForecastTraffic(ctx context.Context, clientID uuid.UUID, daysAhead int) (*TrafficForecast, error) {
	if daysAhead <= 0 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "days ahead must be positive")
	}

	started := time.Now()
	traffic, err := s.repo.GetTrafficTrend(ctx, clientID, trafficWindowDays)
	if err != nil {
		return nil, errors.NewUpstreamError("failed to get traffic trend").WithCause(err)
	}
	if len(traffic) < 7 {
		return nil, errors.NewInsufficientDataError("need at least 7 days of traffic for a forecast")
	}

	sessions := make([]float64, len(traffic))
	for i, t := range traffic {
		sessions[i] = t.Sessions
	}

	pattern, seasonal := weeklyPattern(sessions)

	fit, ok := stats.FitLinear(sessions)
	if !ok {
		// constant series: flat baseline at the mean
		fit = stats.Fit{Intercept: stats.Mean(sessions), N: len(sessions)}
	}

	stdErr := fit.StdError()
	lastDate := traffic[len(traffic)-1].Date
	n := len(sessions)

	points := make([]stats.ForecastPoint, 0, daysAhead)
	for day := 1; day <= daysAhead; day++ {
		x := float64(n + day - 1)
		base := fit.Predict(x)

		margin := 0.0
		if fit.SXX > 0 {
			margin = ciZ * stdErr * math.Sqrt(1+1/float64(n)+(x-fit.XMean)*(x-fit.XMean)/fit.SXX)
		}

		factor := 1.0
		if seasonal {
			// the cycle continues from the sample indexing used to build it
			if f, ok := pattern[(n+day-1)%7]; ok {
				factor = f
			}
		}

		points = append(points, clampPoint(
			lastDate.AddDate(0, 0, day),
			base*factor, (base-margin)*factor, (base+margin)*factor,
			"seasonal_linear",
		))
	}

	currentAvg := stats.Mean(sessions[maxInt(0, n-7):])

	var forecastAvg, growth float64
	if len(points) >= returnHorizon {
		vals := make([]float64, returnHorizon)
		for i := 0; i < returnHorizon; i++ {
			vals[i] = points[i].PredictedValue
		}
		forecastAvg = stats.Mean(vals)
		growth = stats.ChangePercent(forecastAvg, currentAvg)
	}

	s.registry.ForecastsGenerated.Add(ctx, 1, metrics.WithAttrs(attribute.String("model", "seasonal_linear")))
	s.registry.ForecastDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metrics.WithAttrs(attribute.String("model", "seasonal_linear")))

	return &TrafficForecast{
		CurrentDailyAvg:      stats.Round2(currentAvg),
		ForecastedDailyAvg30: stats.Round2(forecastAvg),
		ExpectedGrowthRate:   stats.Round2(growth),
		Trend:                trendForSlope(fit.Slope),
		SeasonalityDetected:  seasonal,
		Forecasts:            points[:minInt(returnHorizon, len(points))],
	}, nil
}

// ForecastAllMetrics runs a linear forecast for every tracked metric name
// plus the traffic projection. Metrics without enough history are skipped;
// repository failures abort the batch.
func (s *service) ForecastAllMetrics(ctx context.Context, clientID uuid.UUID, daysAhead int) (*BatchForecast, error) {
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

	batch := &BatchForecast{
		ClientID:    clientID,
		Metrics:     make(map[string]*LinearForecast, len(names)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, name := range names {
		fc, err := s.ForecastLinear(ctx, clientID, name, daysAhead)
		if err != nil {
			if errors.IsInsufficientData(err) {
				continue
			}
			return nil, err
		}
		batch.Metrics[name] = fc
	}

	traffic, err := s.ForecastTraffic(ctx, clientID, daysAhead)
	if err != nil && !errors.IsInsufficientData(err) {
		return nil, err
	}
	batch.Traffic = traffic
	batch.TotalMetrics = len(batch.Metrics)

	return batch, nil
}

// Helpers

// clampPoint builds a forecast point with the zero floor applied. Values
// and bounds can never go negative, and the low/predicted/high ordering is
// preserved through the clamp.
func clampPoint(date time.Time, predicted, low, high float64, model string) stats.ForecastPoint {
	return stats.ForecastPoint{
		Date:           date,
		PredictedValue: math.Max(0, stats.Round2(predicted)),
		ConfidenceLow:  math.Max(0, stats.Round2(low)),
		ConfidenceHigh: math.Max(0, stats.Round2(high)),
		ModelType:      model,
	}
}

func confidenceForR2(r2 float64) Confidence {
	switch {
	case r2 > 0.7:
		return ConfidenceHigh
	case r2 > 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func trendForSlope(slope float64) TrendLabel {
	switch {
	case slope > 0:
		return TrendIncreasing
	case slope < 0:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// weeklyPattern groups samples by index mod 7 and normalizes each group's
// mean by the overall mean. Needs at least two full weeks, otherwise no
// factors are produced and seasonality is reported as not detected.
func weeklyPattern(values []float64) (map[int]float64, bool) {
	if len(values) < seasonalMinSamples {
		return nil, false
	}

	overall := stats.Mean(values)
	if overall == 0 {
		return nil, false
	}

	byDay := make(map[int][]float64, 7)
	for i, v := range values {
		byDay[i%7] = append(byDay[i%7], v)
	}

	pattern := make(map[int]float64, 7)
	for day, dayValues := range byDay {
		pattern[day] = stats.Mean(dayValues) / overall
	}
	return pattern, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
