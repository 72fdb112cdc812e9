package stats

import "math"

// Trend labels a series direction. Directions are significance-gated: a
// fitted slope only counts as directional when it exceeds 1% of the series
// mean per step (a fixed 0.01 when the mean is zero).
type Trend string

const (
	TrendUp               Trend = "up"
	TrendDown             Trend = "down"
	TrendFlat             Trend = "flat"
	TrendInsufficientData Trend = "insufficient_data"
)

// Volatility classifies series dispersion by coefficient of variation
type Volatility string

const (
	VolatilityLow     Volatility = "low"
	VolatilityMedium  Volatility = "medium"
	VolatilityHigh    Volatility = "high"
	VolatilityUnknown Volatility = "unknown"
)

// Mean returns the arithmetic mean, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the sample standard deviation (n-1 denominator),
// 0 for fewer than two values
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// PopStdDev returns the population standard deviation (n denominator),
// 0 for an empty slice. Anomaly z-scores use this form: the scan window
// is the whole population under test, not a sample of it.
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// Fit holds an ordinary least squares fit of value against sample index,
// along with the sums the forecast interval formula needs.
type Fit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
	XMean     float64
	SXX       float64 // sum of squared x deviations
	SSRes     float64
	SSTot     float64
}

// Predict evaluates the fitted line at index x
func (f Fit) Predict(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// StdError returns the regression standard error derived from the mean
// squared residual, 0 when there are not enough degrees of freedom
func (f Fit) StdError() float64 {
	if f.N <= 2 {
		return 0
	}
	return math.Sqrt(f.SSRes / float64(f.N-2))
}

// FitLinear fits OLS on index vs value. ok is false when the series is too
// short or has zero x-variance, in which case no trend can be computed.
func FitLinear(values []float64) (Fit, bool) {
	n := len(values)
	if n < 2 {
		return Fit{}, false
	}

	xMean := float64(n-1) / 2
	yMean := Mean(values)

	var sxy, sxx float64
	for i, v := range values {
		dx := float64(i) - xMean
		sxy += dx * (v - yMean)
		sxx += dx * dx
	}
	if sxx == 0 {
		return Fit{}, false
	}

	slope := sxy / sxx
	intercept := yMean - slope*xMean

	var ssRes, ssTot float64
	for i, v := range values {
		pred := slope*float64(i) + intercept
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - yMean) * (v - yMean)
	}

	r2 := 0.0
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Fit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		N:         n,
		XMean:     xMean,
		SXX:       sxx,
		SSRes:     ssRes,
		SSTot:     ssTot,
	}, true
}

// EMA returns the exponential moving average series seeded at the first
// value: s[0] = v[0], s[i] = alpha*v[i] + (1-alpha)*s[i-1]
func EMA(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// TrendOf classifies the direction of a series using the significance gate
func TrendOf(values []float64) Trend {
	if len(values) < 2 {
		return TrendInsufficientData
	}

	fit, ok := FitLinear(values)
	if !ok {
		return TrendFlat
	}

	threshold := 0.01
	if m := Mean(values); m != 0 {
		threshold = 0.01 * math.Abs(m)
	}

	switch {
	case fit.Slope > threshold:
		return TrendUp
	case fit.Slope < -threshold:
		return TrendDown
	default:
		return TrendFlat
	}
}

// VolatilityOf classifies dispersion: CV under 10% is low, under 25% is
// medium, anything above is high
func VolatilityOf(values []float64) Volatility {
	if len(values) < 2 {
		return VolatilityUnknown
	}
	avg := Mean(values)
	if avg == 0 {
		return VolatilityUnknown
	}

	cv := SampleStdDev(values) / math.Abs(avg) * 100
	switch {
	case cv < 10:
		return VolatilityLow
	case cv < 25:
		return VolatilityMedium
	default:
		return VolatilityHigh
	}
}

// ChangePercent returns the percent change from previous to current,
// 0 when previous is zero rather than dividing by it
func ChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Round2 rounds to two decimal places, matching the precision derived
// values are reported at
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
