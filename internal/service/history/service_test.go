package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankwise/analytics-core/internal/domain/errors"
	"github.com/rankwise/analytics-core/internal/domain/stats"
)

type mockStatsRepository struct {
	mock.Mock
}

func (m *mockStatsRepository) GetMetrics(ctx context.Context, clientID uuid.UUID, query stats.MetricQuery) ([]stats.MetricSample, error) {
	args := m.Called(ctx, clientID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.MetricSample), args.Error(1)
}

func (m *mockStatsRepository) GetMetricTrend(ctx context.Context, clientID uuid.UUID, metricName string, months int) ([]stats.MetricSample, error) {
	args := m.Called(ctx, clientID, metricName, months)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.MetricSample), args.Error(1)
}

func (m *mockStatsRepository) GetKeywordHistory(ctx context.Context, clientID uuid.UUID, keyword string) ([]stats.KeywordObservation, error) {
	args := m.Called(ctx, clientID, keyword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.KeywordObservation), args.Error(1)
}

func (m *mockStatsRepository) GetTopKeywords(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.KeywordObservation, error) {
	args := m.Called(ctx, clientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.KeywordObservation), args.Error(1)
}

func (m *mockStatsRepository) GetReports(ctx context.Context, clientID uuid.UUID, limit int) ([]stats.ReportScore, error) {
	args := m.Called(ctx, clientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stats.ReportScore), args.Error(1)
}

func (m *mockStatsRepository) GetClient(ctx context.Context, clientID uuid.UUID) (*stats.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.Client), args.Error(1)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo StatsRepository) *service {
	svc := NewService(repo, zap.NewNop()).(*service)
	svc.now = func() time.Time { return testNow }
	return svc
}

func floatPtr(v float64) *float64 { return &v }

// samplesDescending builds samples newest first, matching GetMetrics
func samplesDescending(name string, values []float64) []stats.MetricSample {
	samples := make([]stats.MetricSample, len(values))
	for i, v := range values {
		samples[i] = stats.MetricSample{
			MetricName: name,
			Value:      v,
			Date:       testNow.AddDate(0, -i, 0),
		}
	}
	return samples
}

// samplesAscending builds samples oldest first, matching GetMetricTrend
func samplesAscending(name string, values []float64) []stats.MetricSample {
	samples := make([]stats.MetricSample, len(values))
	for i, v := range values {
		samples[i] = stats.MetricSample{
			MetricName: name,
			Value:      v,
			Date:       testNow.AddDate(0, 0, i-len(values)),
		}
	}
	return samples
}

func TestCompareMonthOverMonth(t *testing.T) {
	clientID := uuid.New()

	tests := []struct {
		name       string
		setupMocks func(*mockStatsRepository)
		wantErr    bool
		errCheck   func(*testing.T, error)
		validate   func(*testing.T, *MonthOverMonth)
	}{
		{
			name: "growth between the two latest samples",
			setupMocks: func(repo *mockStatsRepository) {
				repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "organic_traffic"}).
					Return(samplesDescending("organic_traffic", []float64{120, 100, 90}), nil)
			},
			validate: func(t *testing.T, mom *MonthOverMonth) {
				assert.Equal(t, 120.0, mom.CurrentValue)
				assert.Equal(t, 100.0, mom.PreviousValue)
				assert.InDelta(t, 20.0, mom.Change, 1e-9)
				assert.InDelta(t, 20.0, mom.ChangePercent, 1e-9)
				assert.Equal(t, stats.TrendUp, mom.Trend)
			},
		},
		{
			name: "single sample is insufficient",
			setupMocks: func(repo *mockStatsRepository) {
				repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "organic_traffic"}).
					Return(samplesDescending("organic_traffic", []float64{120}), nil)
			},
			wantErr: true,
			errCheck: func(t *testing.T, err error) {
				assert.True(t, errors.IsInsufficientData(err))
			},
		},
		{
			name: "zero previous value is insufficient, not a division",
			setupMocks: func(repo *mockStatsRepository) {
				repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "organic_traffic"}).
					Return(samplesDescending("organic_traffic", []float64{120, 0}), nil)
			},
			wantErr: true,
			errCheck: func(t *testing.T, err error) {
				assert.True(t, errors.IsInsufficientData(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockStatsRepository)
			tt.setupMocks(repo)
			svc := newTestService(repo)

			mom, err := svc.CompareMonthOverMonth(context.Background(), clientID, "organic_traffic")
			if tt.wantErr {
				require.Error(t, err)
				tt.errCheck(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, mom)
		})
	}
}

func TestCompareYearOverYear(t *testing.T) {
	clientID := uuid.New()

	t.Run("compares window averages a year apart", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetMetrics", mock.Anything, clientID, mock.MatchedBy(func(q stats.MetricQuery) bool {
			return q.EndDate == nil
		})).Return(samplesDescending("organic_traffic", []float64{115, 110, 105}), nil)
		repo.On("GetMetrics", mock.Anything, clientID, mock.MatchedBy(func(q stats.MetricQuery) bool {
			return q.EndDate != nil
		})).Return(samplesDescending("organic_traffic", []float64{102, 100, 98}), nil)
		svc := newTestService(repo)

		yoy, err := svc.CompareYearOverYear(context.Background(), clientID, "organic_traffic")
		require.NoError(t, err)

		assert.InDelta(t, 110.0, yoy.CurrentAverage, 1e-9)
		assert.InDelta(t, 100.0, yoy.YearAgoAverage, 1e-9)
		assert.InDelta(t, 10.0, yoy.ChangePercent, 1e-9)
		assert.Equal(t, stats.TrendUp, yoy.Trend)
	})

	t.Run("empty year-ago window is insufficient", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetMetrics", mock.Anything, clientID, mock.MatchedBy(func(q stats.MetricQuery) bool {
			return q.EndDate == nil
		})).Return(samplesDescending("organic_traffic", []float64{115, 110}), nil)
		repo.On("GetMetrics", mock.Anything, clientID, mock.MatchedBy(func(q stats.MetricQuery) bool {
			return q.EndDate != nil
		})).Return([]stats.MetricSample{}, nil)
		svc := newTestService(repo)

		_, err := svc.CompareYearOverYear(context.Background(), clientID, "organic_traffic")
		require.Error(t, err)
		assert.True(t, errors.IsInsufficientData(err))
	})
}

func TestMetricSummary(t *testing.T) {
	clientID := uuid.New()

	t.Run("constant series is flat with low volatility", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetMetricTrend", mock.Anything, clientID, "health_score", 6).
			Return(samplesAscending("health_score", []float64{70, 70, 70, 70, 70}), nil)
		svc := newTestService(repo)

		summary, err := svc.MetricSummary(context.Background(), clientID, "health_score", 6)
		require.NoError(t, err)

		assert.Equal(t, stats.TrendFlat, summary.TrendDirection)
		assert.Equal(t, stats.VolatilityLow, summary.Volatility)
		assert.Equal(t, 70.0, summary.CurrentValue)
		assert.Equal(t, 70.0, summary.MinValue)
		assert.Equal(t, 70.0, summary.MaxValue)
		assert.Equal(t, 5, summary.DataPoints)
	})

	t.Run("five percent growth per step trends up", func(t *testing.T) {
		repo := new(mockStatsRepository)
		values := []float64{100}
		for i := 0; i < 7; i++ {
			values = append(values, values[len(values)-1]*1.05)
		}
		repo.On("GetMetricTrend", mock.Anything, clientID, "organic_traffic", 6).
			Return(samplesAscending("organic_traffic", values), nil)
		svc := newTestService(repo)

		summary, err := svc.MetricSummary(context.Background(), clientID, "organic_traffic", 6)
		require.NoError(t, err)
		assert.Equal(t, stats.TrendUp, summary.TrendDirection)
	})

	t.Run("no data is insufficient", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetMetricTrend", mock.Anything, clientID, "missing", 6).
			Return([]stats.MetricSample{}, nil)
		svc := newTestService(repo)

		_, err := svc.MetricSummary(context.Background(), clientID, "missing", 6)
		require.Error(t, err)
		assert.True(t, errors.IsInsufficientData(err))
	})
}

func TestAnalyzeKeywordTrends(t *testing.T) {
	clientID := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	repo := new(mockStatsRepository)
	hist := []stats.KeywordObservation{
		{Keyword: "seo tools", Position: floatPtr(20), Clicks: 10, Date: base},
		{Keyword: "seo tools", Position: floatPtr(15), Clicks: 0, Date: base.AddDate(0, 0, 7)},
		{Keyword: "seo tools", Position: floatPtr(8), Clicks: 50, Date: base.AddDate(0, 0, 14)},
	}
	repo.On("GetKeywordHistory", mock.Anything, clientID, "seo tools").Return(hist, nil)
	svc := newTestService(repo)

	trend, err := svc.AnalyzeKeywordTrends(context.Background(), clientID, "seo tools")
	require.NoError(t, err)

	assert.Equal(t, base, trend.FirstTracked)
	require.NotNil(t, trend.CurrentPosition)
	assert.Equal(t, 8.0, *trend.CurrentPosition)
	assert.Equal(t, 8.0, *trend.BestPosition)
	assert.Equal(t, 20.0, *trend.WorstPosition)
	// moved from 20 up to 8
	assert.InDelta(t, 12.0, trend.PositionImprovement, 1e-9)
	assert.Equal(t, int64(60), trend.TotalClicks)
	// zero-click rows do not dilute the average
	assert.InDelta(t, 30.0, trend.AvgClicks, 1e-9)
	assert.Equal(t, stats.TrendDown, trend.Trend)
}

func TestCompareKeywordPeriods(t *testing.T) {
	clientID := uuid.New()
	old := testNow.AddDate(0, 0, -40)
	recent := testNow.AddDate(0, 0, -1)

	repo := new(mockStatsRepository)
	repo.On("GetTopKeywords", mock.Anything, clientID, 100).
		Return([]stats.KeywordObservation{
			{Keyword: "winner", Clicks: 150},
			{Keyword: "loser", Clicks: 80},
			{Keyword: "new entry", Clicks: 10},
		}, nil)
	repo.On("GetKeywordHistory", mock.Anything, clientID, "winner").
		Return([]stats.KeywordObservation{
			{Keyword: "winner", Position: floatPtr(12), Clicks: 100, Date: old},
			{Keyword: "winner", Position: floatPtr(7), Clicks: 150, Date: recent},
		}, nil)
	repo.On("GetKeywordHistory", mock.Anything, clientID, "loser").
		Return([]stats.KeywordObservation{
			{Keyword: "loser", Position: floatPtr(5), Clicks: 120, Date: old},
			{Keyword: "loser", Position: floatPtr(8), Clicks: 80, Date: recent},
		}, nil)
	repo.On("GetKeywordHistory", mock.Anything, clientID, "new entry").
		Return([]stats.KeywordObservation{
			{Keyword: "new entry", Position: floatPtr(30), Clicks: 10, Date: recent},
		}, nil)
	svc := newTestService(repo)

	result, err := svc.CompareKeywordPeriods(context.Background(), clientID, 30)
	require.NoError(t, err)

	// single-observation keywords cannot be compared
	assert.Equal(t, 2, result.TotalKeywords)
	assert.Equal(t, 1, result.Improved)
	assert.Equal(t, 1, result.Declined)
	assert.Equal(t, 0, result.Stable)

	require.Len(t, result.All, 2)
	assert.Equal(t, "winner", result.All[0].Keyword)
	assert.InDelta(t, 5.0, result.All[0].PositionChange, 1e-9)
	assert.Equal(t, StatusImproved, result.All[0].Status)
	assert.Equal(t, "loser", result.All[1].Keyword)
	assert.Equal(t, StatusDeclined, result.All[1].Status)

	require.Len(t, result.TopWinners, 1)
	assert.Equal(t, "winner", result.TopWinners[0].Keyword)
	require.Len(t, result.TopLosers, 1)
	assert.Equal(t, "loser", result.TopLosers[0].Keyword)
}

func TestHealthScoreTrend(t *testing.T) {
	clientID := uuid.New()

	t.Run("summarizes newest-first report scores", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetReports", mock.Anything, clientID, 6).
			Return([]stats.ReportScore{
				{ReportDate: testNow, HealthScore: floatPtr(80)},
				{ReportDate: testNow.AddDate(0, -1, 0), HealthScore: floatPtr(75)},
				{ReportDate: testNow.AddDate(0, -2, 0), HealthScore: nil},
				{ReportDate: testNow.AddDate(0, -3, 0), HealthScore: floatPtr(70)},
			}, nil)
		svc := newTestService(repo)

		trend, err := svc.HealthScoreTrend(context.Background(), clientID, 6)
		require.NoError(t, err)

		assert.Equal(t, 80.0, trend.CurrentScore)
		assert.Equal(t, 80.0, trend.BestScore)
		assert.Equal(t, 70.0, trend.WorstScore)
		assert.InDelta(t, 10.0, trend.Improvement, 1e-9)
		assert.Len(t, trend.History, 3)
	})

	t.Run("reports without scores are insufficient", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetReports", mock.Anything, clientID, 6).
			Return([]stats.ReportScore{{ReportDate: testNow}}, nil)
		svc := newTestService(repo)

		_, err := svc.HealthScoreTrend(context.Background(), clientID, 6)
		require.Error(t, err)
		assert.True(t, errors.IsInsufficientData(err))
	})
}

func TestTopImprovements(t *testing.T) {
	clientID := uuid.New()

	repo := new(mockStatsRepository)
	listing := append(
		samplesDescending("organic_traffic", []float64{100}),
		samplesDescending("conversions", []float64{50})...,
	)
	repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{}).
		Return(listing, nil)
	repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "organic_traffic"}).
		Return(samplesDescending("organic_traffic", []float64{110, 100}), nil)
	repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "conversions"}).
		Return(samplesDescending("conversions", []float64{30, 60}), nil)
	svc := newTestService(repo)

	improvements, err := svc.TopImprovements(context.Background(), clientID, 10)
	require.NoError(t, err)

	// ordered by movement magnitude regardless of direction
	require.Len(t, improvements, 2)
	assert.Equal(t, "conversions", improvements[0].Metric)
	assert.InDelta(t, -50.0, improvements[0].ChangePercent, 1e-9)
	assert.Equal(t, "organic_traffic", improvements[1].Metric)
	assert.InDelta(t, 10.0, improvements[1].ChangePercent, 1e-9)
}

func TestConcerningTrends(t *testing.T) {
	clientID := uuid.New()

	repo := new(mockStatsRepository)
	listing := append(
		samplesDescending("organic_traffic", []float64{100}),
		samplesDescending("conversions", []float64{50})...,
	)
	repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{}).
		Return(listing, nil)
	// steady decline, low noise
	repo.On("GetMetricTrend", mock.Anything, clientID, "organic_traffic", 3).
		Return(samplesAscending("organic_traffic", []float64{100, 95, 90, 85, 80}), nil)
	// volatile decline
	repo.On("GetMetricTrend", mock.Anything, clientID, "conversions", 3).
		Return(samplesAscending("conversions", []float64{100, 40, 90, 20, 45, 10}), nil)
	svc := newTestService(repo)

	concerns, err := svc.ConcerningTrends(context.Background(), clientID)
	require.NoError(t, err)

	require.Len(t, concerns, 2)
	// the volatile decline sorts first
	assert.Equal(t, "conversions", concerns[0].Metric)
	assert.Equal(t, stats.SeverityHigh, concerns[0].Severity)
	assert.Equal(t, stats.VolatilityHigh, concerns[0].Volatility)
	assert.Equal(t, "organic_traffic", concerns[1].Metric)
	assert.Equal(t, stats.SeverityMedium, concerns[1].Severity)
}

func TestTrendReport(t *testing.T) {
	clientID := uuid.New()

	t.Run("unknown client is not found", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetClient", mock.Anything, clientID).Return(nil, nil)
		svc := newTestService(repo)

		_, err := svc.TrendReport(context.Background(), clientID)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("missing health history omits the section", func(t *testing.T) {
		repo := new(mockStatsRepository)
		repo.On("GetClient", mock.Anything, clientID).
			Return(&stats.Client{ID: clientID, Name: "Acme Corp"}, nil)
		repo.On("GetReports", mock.Anything, clientID, 6).
			Return([]stats.ReportScore{}, nil)
		repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{}).
			Return(samplesDescending("organic_traffic", []float64{100}), nil)
		repo.On("GetMetrics", mock.Anything, clientID, stats.MetricQuery{MetricName: "organic_traffic"}).
			Return(samplesDescending("organic_traffic", []float64{110, 100}), nil)
		repo.On("GetMetricTrend", mock.Anything, clientID, "organic_traffic", 3).
			Return(samplesAscending("organic_traffic", []float64{100, 105, 110}), nil)
		repo.On("GetTopKeywords", mock.Anything, clientID, 100).
			Return([]stats.KeywordObservation{}, nil)
		svc := newTestService(repo)

		report, err := svc.TrendReport(context.Background(), clientID)
		require.NoError(t, err)

		assert.Equal(t, "Acme Corp", report.ClientName)
		assert.Nil(t, report.HealthScoreTrend)
		assert.Len(t, report.TopImprovements, 1)
		assert.Empty(t, report.ConcerningTrends)
		assert.Equal(t, "improving", report.Summary.OverallHealth)
		assert.Equal(t, 1, report.Summary.PositiveTrends)
	})
}
