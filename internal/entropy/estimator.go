// Package entropy implements the Kimera SWM entropy monitor: Shannon entropy
// estimation over the live geoid population, thermodynamic state analysis,
// and the adaptive insight-validation threshold.
package entropy

import (
	"fmt"
	"math"
)

// Estimation methods supported by the monitor.
const (
	EstimatorMLE         = "mle"
	EstimatorMillerMadow = "miller_madow"
	EstimatorChaoShen    = "chao_shen"
)

// Estimator computes Shannon entropy (base 2) from nonnegative counts.
// Counts are activation masses, not necessarily integers.
type Estimator struct {
	Method string
}

// NewEstimator validates the method name.
func NewEstimator(method string) (*Estimator, error) {
	switch method {
	case EstimatorMLE, EstimatorMillerMadow, EstimatorChaoShen:
		return &Estimator{Method: method}, nil
	default:
		return nil, fmt.Errorf("unknown entropy estimation method %q", method)
	}
}

// Entropy estimates Shannon entropy in bits from the given counts.
// Zero and negative counts are ignored; empty input yields zero.
func (e *Estimator) Entropy(counts []float64) float64 {
	positive := make([]float64, 0, len(counts))
	var total float64
	for _, c := range counts {
		if c > 0 {
			positive = append(positive, c)
			total += c
		}
	}
	if total == 0 || len(positive) == 0 {
		return 0
	}

	switch e.Method {
	case EstimatorMillerMadow:
		return millerMadow(positive, total)
	case EstimatorChaoShen:
		return chaoShen(positive, total)
	default:
		return mle(positive, total)
	}
}

// mle is the maximum-likelihood (plug-in) estimator.
func mle(counts []float64, total float64) float64 {
	var h float64
	for _, c := range counts {
		p := c / total
		h -= p * math.Log2(p)
	}
	return h
}

// millerMadow applies the (K-1)/(2N) small-sample bias correction on top of
// the plug-in estimate. N is the total activation mass.
func millerMadow(counts []float64, total float64) float64 {
	h := mle(counts, total)
	k := float64(len(counts))
	return h + (k-1)/(2*total*math.Ln2)
}

// chaoShen is the coverage-adjusted estimator. Sample coverage is estimated
// from the fraction of near-minimal activations standing in for singletons;
// activation masses are continuous so counts are bucketed at the smallest
// observed positive mass.
func chaoShen(counts []float64, total float64) float64 {
	minMass := counts[0]
	for _, c := range counts {
		if c < minMass {
			minMass = c
		}
	}
	var singletons float64
	for _, c := range counts {
		if c <= minMass*1.0000001 {
			singletons++
		}
	}
	// Effective sample size in units of the minimal mass.
	n := total / minMass
	coverage := 1 - singletons/n
	if coverage <= 0 {
		// Degenerate coverage: every observation is a singleton. Fall back to
		// the bias-corrected estimate, which chao_shen converges to.
		return millerMadow(counts, total)
	}

	var h float64
	for _, c := range counts {
		p := coverage * (c / total)
		if p <= 0 || p >= 1 {
			continue
		}
		correction := 1 - math.Pow(1-p, n)
		if correction <= 0 {
			continue
		}
		h -= p * math.Log2(p) / correction
	}
	return h
}

// RelativeEntropy is the KL divergence (bits) of the observed distribution
// from uniform over the same support.
func RelativeEntropy(counts []float64) float64 {
	var total float64
	k := 0
	for _, c := range counts {
		if c > 0 {
			total += c
			k++
		}
	}
	if total == 0 || k <= 1 {
		return 0
	}
	uniform := 1.0 / float64(k)
	var kl float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / total
		kl += p * math.Log2(p/uniform)
	}
	if kl < 0 {
		return 0
	}
	return kl
}
