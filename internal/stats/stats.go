// Package stats provides the statistical models used on vault telemetry:
// entropy time series analysis, contradiction factor regression, and the
// semantic market view of geoid activity.
package stats

import (
	"fmt"
	"math"

	"kimera/internal/logging"
)

// EntropySeriesAnalysis summarizes an entropy time series and a one-step
// AR(1) forecast.
type EntropySeriesAnalysis struct {
	Count           int     `json:"count"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"std_dev"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Trend           float64 `json:"trend"`
	Autocorrelation float64 `json:"lag1_autocorrelation"`
	VarianceRatio   float64 `json:"variance_ratio"`
	Stationary      bool    `json:"stationary"`
	ARCoefficient   float64 `json:"ar1_coefficient"`
	ARIntercept     float64 `json:"ar1_intercept"`
	Forecast        float64 `json:"forecast_next"`
}

// AnalyzeEntropySeries fits summary statistics and an AR(1) model to the
// series. At least three observations are required.
func AnalyzeEntropySeries(series []float64) (*EntropySeriesAnalysis, error) {
	if len(series) < 3 {
		return nil, fmt.Errorf("entropy series needs at least 3 observations, got %d", len(series))
	}

	a := &EntropySeriesAnalysis{
		Count: len(series),
		Min:   series[0],
		Max:   series[0],
	}
	for _, v := range series {
		a.Mean += v
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Mean /= float64(len(series))

	var variance float64
	for _, v := range series {
		variance += (v - a.Mean) * (v - a.Mean)
	}
	variance /= float64(len(series))
	a.StdDev = math.Sqrt(variance)

	a.Trend = linearTrend(series)
	a.Autocorrelation = lagAutocorrelation(series, 1)

	// AR(1): x_t = c + phi * x_{t-1}; fit by OLS on the lagged pairs.
	phi, c := fitAR1(series)
	a.ARCoefficient = phi
	a.ARIntercept = c
	a.Forecast = c + phi*series[len(series)-1]

	// Stationarity: |phi| < 1 keeps the process mean-reverting, the variance
	// ratio of the two halves catches a drifting spread, and a strong
	// deterministic trend rules it out either way.
	relTrend := 0.0
	if a.StdDev > 0 {
		relTrend = math.Abs(a.Trend) * float64(len(series)) / a.StdDev
	}
	a.VarianceRatio = halvesVarianceRatio(series)
	a.Stationary = math.Abs(phi) < 1 && relTrend < 2 && a.VarianceRatio < 4

	logging.Stats("Entropy series: n=%d mean=%.4f phi=%.3f forecast=%.4f", a.Count, a.Mean, phi, a.Forecast)
	return a, nil
}

// halvesVarianceRatio compares the spread of the series' two halves,
// larger over smaller. A constant-spread series sits near 1.
func halvesVarianceRatio(series []float64) float64 {
	mid := len(series) / 2
	v1 := sampleVariance(series[:mid])
	v2 := sampleVariance(series[mid:])
	if v1 == 0 && v2 == 0 {
		return 1
	}
	if v1 == 0 || v2 == 0 {
		return math.Inf(1)
	}
	if v1 > v2 {
		return v1 / v2
	}
	return v2 / v1
}

func sampleVariance(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))
	var variance float64
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(series))
}

// linearTrend is the OLS slope of the series against its index.
func linearTrend(series []float64) float64 {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range series {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

func lagAutocorrelation(series []float64, lag int) float64 {
	if lag <= 0 || lag >= len(series) {
		return 0
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	var num, den float64
	for i := 0; i < len(series); i++ {
		den += (series[i] - mean) * (series[i] - mean)
	}
	for i := lag; i < len(series); i++ {
		num += (series[i] - mean) * (series[i-lag] - mean)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// fitAR1 returns (phi, c) for x_t = c + phi*x_{t-1}.
func fitAR1(series []float64) (phi, c float64) {
	n := len(series) - 1
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		x := series[i]
		y := series[i+1]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / fn
	}
	phi = (fn*sumXY - sumX*sumY) / den
	c = (sumY - phi*sumX) / fn
	return phi, c
}
