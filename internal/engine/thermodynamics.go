package engine

import (
	"fmt"

	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// ThermodynamicsEngine enforces the entropy compliance rule on geoid
// transformations: a transformation may never reduce a geoid's entropy.
type ThermodynamicsEngine struct{}

// NewThermodynamicsEngine returns a thermodynamics engine.
func NewThermodynamicsEngine() *ThermodynamicsEngine {
	return &ThermodynamicsEngine{}
}

// ValidationResult reports how a transformation was handled.
type ValidationResult struct {
	Compliant     bool    `json:"compliant"`
	Corrected     bool    `json:"corrected"`
	BeforeEntropy float64 `json:"before_entropy"`
	AfterEntropy  float64 `json:"after_entropy"`
	FinalEntropy  float64 `json:"final_entropy"`
	AddedFeatures int     `json:"added_features"`
}

// maximum correction features before giving up on compliance.
const maxComplianceFeatures = 64

// ValidateTransformation checks that after's entropy is at least before's.
// Non-compliant transformations are corrected in place by spreading small
// compensation features (comp_0, comp_1, ...) across the after state until
// its entropy recovers.
func (e *ThermodynamicsEngine) ValidateTransformation(before, after *geoid.State) (*ValidationResult, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("both transformation states are required")
	}

	res := &ValidationResult{
		BeforeEntropy: before.CalculateEntropy(),
		AfterEntropy:  after.CalculateEntropy(),
	}
	res.FinalEntropy = res.AfterEntropy
	if res.AfterEntropy >= res.BeforeEntropy {
		res.Compliant = true
		return res, nil
	}

	// Each added feature raises the number of microstates, which raises
	// Shannon entropy toward and past the pre-transformation level.
	base := after.ActivationSum()
	if base <= 0 {
		base = 1.0
	}
	compWeight := base * 0.05
	for i := 0; i < maxComplianceFeatures; i++ {
		if after.SemanticFeatures == nil {
			after.SemanticFeatures = make(map[string]float64)
		}
		after.SemanticFeatures[fmt.Sprintf("comp_%d", i)] = compWeight
		res.AddedFeatures++
		res.FinalEntropy = after.CalculateEntropy()
		if res.FinalEntropy >= res.BeforeEntropy {
			break
		}
	}

	res.Corrected = res.FinalEntropy >= res.BeforeEntropy
	if !res.Corrected {
		return res, fmt.Errorf("transformation of %s could not be made entropy-compliant (%.4f < %.4f)",
			after.GeoidID, res.FinalEntropy, res.BeforeEntropy)
	}

	logging.EngineDebug("Corrected transformation of %s: added %d compensation features (%.4f -> %.4f)",
		after.GeoidID, res.AddedFeatures, res.AfterEntropy, res.FinalEntropy)
	return res, nil
}
