package entropy

import (
	"math"
	"sort"
)

// PredictabilityIndex scores how predictable a numeric series is, in [0,1].
// It blends three views: lag-1 autocorrelation (linear structure),
// permutation entropy of order 3 (ordinal structure), and the variance ratio
// between the series and its first differences (smoothness). Constant series
// score 1; white noise scores near 0.
func PredictabilityIndex(series []float64) float64 {
	if len(series) < 3 {
		return 1.0
	}
	if isConstant(series) {
		return 1.0
	}

	ac := math.Abs(autocorrelation(series, 1))
	ordinal := 1 - permutationEntropy(series, 3)
	smooth := smoothness(series)

	score := 0.4*ac + 0.4*ordinal + 0.2*smooth
	return clamp(score, 0, 1)
}

func isConstant(series []float64) bool {
	for _, v := range series[1:] {
		if v != series[0] {
			return false
		}
	}
	return true
}

// autocorrelation computes the sample autocorrelation at the given lag.
func autocorrelation(series []float64, lag int) float64 {
	n := len(series)
	if lag >= n {
		return 0
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	var num, den float64
	for i := 0; i < n-lag; i++ {
		num += (series[i] - mean) * (series[i+lag] - mean)
	}
	for _, v := range series {
		den += (v - mean) * (v - mean)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// permutationEntropy returns the normalized permutation entropy for the
// given embedding order, in [0,1]. Low values mean few ordinal patterns
// dominate.
func permutationEntropy(series []float64, order int) float64 {
	n := len(series)
	if n < order+1 {
		return 0
	}

	patterns := make(map[string]int)
	total := 0
	idx := make([]int, order)
	for i := 0; i <= n-order; i++ {
		window := series[i : i+order]
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return window[idx[a]] < window[idx[b]] })
		key := ""
		for _, j := range idx {
			key += string(rune('0' + j))
		}
		patterns[key]++
		total++
	}

	var h float64
	for _, c := range patterns {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	maxH := math.Log2(factorial(order))
	if maxH == 0 {
		return 0
	}
	return clamp(h/maxH, 0, 1)
}

// smoothness compares first-difference variance against series variance.
// Slowly varying series have small step variance relative to their range.
func smoothness(series []float64) float64 {
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	var variance float64
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(series))
	if variance == 0 {
		return 1
	}

	var diffVar float64
	for i := 1; i < len(series); i++ {
		d := series[i] - series[i-1]
		diffVar += d * d
	}
	diffVar /= float64(len(series) - 1)

	// White noise has diff variance about twice the series variance.
	ratio := diffVar / (2 * variance)
	return clamp(1-ratio, 0, 1)
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
