package stats

import (
	"fmt"
	"math"

	"kimera/internal/logging"
	"kimera/internal/vault"
)

// ContradictionFactors is the OLS regression of scar entropy change on scar
// geometry: delta_entropy ~ intercept + b1*cls_angle + b2*semantic_polarity
// + b3*mutation_frequency.
type ContradictionFactors struct {
	Observations int       `json:"observations"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"` // cls_angle, semantic_polarity, mutation_frequency
	RSquared     float64   `json:"r_squared"`
	ResidualStd  float64   `json:"residual_std"`
}

var contradictionFactorNames = []string{"cls_angle", "semantic_polarity", "mutation_frequency"}

// FactorNames returns the regressor names in coefficient order.
func (c *ContradictionFactors) FactorNames() []string {
	return contradictionFactorNames
}

// AnalyzeContradictionFactors regresses scar delta entropy on scar geometry
// via the normal equations. At least six scars are required so the design
// matrix has spare rank.
func AnalyzeContradictionFactors(scars []*vault.Scar) (*ContradictionFactors, error) {
	if len(scars) < 6 {
		return nil, fmt.Errorf("contradiction regression needs at least 6 scars, got %d", len(scars))
	}

	k := len(contradictionFactorNames) + 1
	y := make([]float64, len(scars))
	X := make([][]float64, len(scars))
	for i, s := range scars {
		y[i] = s.DeltaEntropy
		X[i] = []float64{1, s.ClsAngle, s.SemanticPolarity, s.MutationFrequency}
	}

	beta, err := solveNormalEquations(X, y, k)
	if err != nil {
		return nil, err
	}

	res := &ContradictionFactors{
		Observations: len(scars),
		Intercept:    beta[0],
		Coefficients: beta[1:],
	}

	var meanY float64
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(len(y))

	var ssRes, ssTot float64
	for i := range y {
		pred := beta[0]
		for j := 1; j < k; j++ {
			pred += beta[j] * X[i][j]
		}
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTot > 0 {
		res.RSquared = 1 - ssRes/ssTot
	}
	dof := len(scars) - k
	if dof > 0 {
		res.ResidualStd = math.Sqrt(ssRes / float64(dof))
	}

	logging.Stats("Contradiction factors: n=%d R2=%.3f", res.Observations, res.RSquared)
	return res, nil
}

// solveNormalEquations computes beta = (X'X)^-1 X'y via Gaussian elimination
// with partial pivoting.
func solveNormalEquations(X [][]float64, y []float64, k int) ([]float64, error) {
	// Build the augmented system [X'X | X'y].
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	for r := range X {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += X[r][i] * X[r][j]
			}
			a[i][k] += X[r][i] * y[r]
		}
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("design matrix is singular (column %d)", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	beta := make([]float64, k)
	for i := 0; i < k; i++ {
		beta[i] = a[i][k] / a[i][i]
	}
	return beta, nil
}
