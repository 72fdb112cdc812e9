package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 4.0, Mean([]float64{2, 4, 6}))
}

func TestStdDev(t *testing.T) {
	// mean 100, sum of squared deviations 28
	values := []float64{100, 102, 98, 101, 99, 103, 97}

	assert.InDelta(t, 2.0, PopStdDev(values), 1e-9)
	assert.InDelta(t, 2.1602, SampleStdDev(values), 1e-4)

	// the population form divides by n, so it is always the smaller of the two
	assert.Less(t, PopStdDev(values), SampleStdDev(values))

	assert.Equal(t, 0.0, PopStdDev(nil))
	assert.Equal(t, 0.0, SampleStdDev([]float64{5}))
}

func TestFitLinear(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		// y = 2x + 5
		values := []float64{5, 7, 9, 11, 13, 15}

		fit, ok := FitLinear(values)
		require.True(t, ok)

		assert.InDelta(t, 2.0, fit.Slope, 1e-9)
		assert.InDelta(t, 5.0, fit.Intercept, 1e-9)
		assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
		assert.InDelta(t, 25.0, fit.Predict(10), 1e-9)
		assert.InDelta(t, 0.0, fit.StdError(), 1e-9)
	})

	t.Run("constant series has zero slope and zero r-squared", func(t *testing.T) {
		fit, ok := FitLinear([]float64{5, 5, 5, 5})
		require.True(t, ok)
		assert.Zero(t, fit.Slope)
		assert.Zero(t, fit.RSquared)
		assert.InDelta(t, 5.0, fit.Intercept, 1e-9)
	})

	t.Run("too short", func(t *testing.T) {
		_, ok := FitLinear([]float64{42})
		assert.False(t, ok)
	})

	t.Run("noisy series has positive residual error", func(t *testing.T) {
		fit, ok := FitLinear([]float64{10, 14, 11, 18, 16, 22, 19})
		require.True(t, ok)
		assert.Greater(t, fit.Slope, 0.0)
		assert.Greater(t, fit.StdError(), 0.0)
		assert.Less(t, fit.RSquared, 1.0)
	})
}

func TestStdErrorNeedsDegreesOfFreedom(t *testing.T) {
	fit, ok := FitLinear([]float64{3, 9})
	require.True(t, ok)
	assert.Zero(t, fit.StdError())
}

func TestEMA(t *testing.T) {
	assert.Nil(t, EMA(nil, 0.3))

	out := EMA([]float64{10, 20, 20}, 0.5)
	require.Len(t, out, 3)
	assert.InDelta(t, 10.0, out[0], 1e-9)
	assert.InDelta(t, 15.0, out[1], 1e-9)
	assert.InDelta(t, 17.5, out[2], 1e-9)
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Trend
	}{
		{
			name:   "constant series is flat",
			values: []float64{70, 70, 70, 70, 70, 70, 70, 70, 70, 70},
			want:   TrendFlat,
		},
		{
			name:   "growth of five percent of the mean per step is up",
			values: []float64{100, 105, 110, 115, 120},
			want:   TrendUp,
		},
		{
			name:   "drift under one percent of the mean stays flat",
			values: []float64{100, 100.5, 101, 101.5, 102},
			want:   TrendFlat,
		},
		{
			name:   "steady decline is down",
			values: []float64{100, 95, 90, 85, 80},
			want:   TrendDown,
		},
		{
			name:   "all-zero series uses the absolute gate",
			values: []float64{0, 0, 0, 0},
			want:   TrendFlat,
		},
		{
			name:   "single sample",
			values: []float64{42},
			want:   TrendInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendOf(tt.values))
		})
	}
}

func TestVolatilityOf(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Volatility
	}{
		{name: "tight series is low", values: []float64{100, 101, 99, 100}, want: VolatilityLow},
		{name: "moderate swings are medium", values: []float64{100, 80, 120, 90, 110}, want: VolatilityMedium},
		{name: "wild swings are high", values: []float64{100, 40, 90, 20, 45, 10}, want: VolatilityHigh},
		{name: "single sample is unknown", values: []float64{5}, want: VolatilityUnknown},
		{name: "zero mean is unknown", values: []float64{-5, 5}, want: VolatilityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VolatilityOf(tt.values))
		})
	}
}

func TestChangePercent(t *testing.T) {
	assert.InDelta(t, 10.0, ChangePercent(110, 100), 1e-9)
	assert.InDelta(t, -10.0, ChangePercent(90, 100), 1e-9)
	assert.Zero(t, ChangePercent(5, 0))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 3.14, Round2(3.14159))
	assert.Equal(t, 66.7, Round1(66.666))
	assert.Equal(t, -2.5, Round2(-2.499))
}
