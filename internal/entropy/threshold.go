package entropy

import "math"

// Adaptive threshold bounds. The base threshold sits at 0.05; adaptation
// never pushes it outside [MinThreshold, MaxThreshold].
const (
	BaseThreshold = 0.05
	MinThreshold  = 0.01
	MaxThreshold  = 0.20

	// referenceEntropy is the system entropy at which no entropy-driven
	// adjustment applies.
	referenceEntropy = 2.0
)

// AdaptiveThreshold computes the insight-validation entropy threshold from
// the current system state. Higher system entropy loosens the threshold
// (the system tolerates more surprising insights while exploring), higher
// complexity tightens it slightly, and degraded performance raises it so
// only clearly valuable insights pass.
func AdaptiveThreshold(systemEntropy, systemComplexity, performance float64) float64 {
	entropyFactor := 1 + 0.1*(systemEntropy-referenceEntropy)
	complexityFactor := 1 + math.Min(systemComplexity/100, 2.0)*0.1
	performanceFactor := 2 - clamp(performance, 0, 1)

	threshold := BaseThreshold * entropyFactor * complexityFactor * performanceFactor
	return clamp(threshold, MinThreshold, MaxThreshold)
}

// IsInsightValid reports whether an insight's entropy reduction clears the
// adaptive threshold for the given system state.
func IsInsightValid(entropyReduction, systemEntropy, systemComplexity, performance float64) bool {
	return entropyReduction >= AdaptiveThreshold(systemEntropy, systemComplexity, performance)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
