// Package geoid defines the semantic state primitive of Kimera SWM.
// A geoid is a named bundle of weighted semantic features plus an optional
// symbolic state and embedding vector. Shannon entropy over the normalized
// feature distribution is the quantity every other subsystem reasons about.
package geoid

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// State is a single geoid: a point in semantic space.
type State struct {
	GeoidID          string             `json:"geoid_id"`
	SemanticFeatures map[string]float64 `json:"semantic_features"`
	SymbolicState    map[string]any     `json:"symbolic_state,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
	EmbeddingVector  []float32          `json:"embedding_vector,omitempty"`
}

// NewState builds a geoid with the given ID and features. An empty ID gets a
// generated GEOID_<uuid> identifier.
func NewState(id string, features map[string]float64) *State {
	if id == "" {
		id = fmt.Sprintf("GEOID_%s", uuid.NewString()[:8])
	}
	if features == nil {
		features = make(map[string]float64)
	}
	return &State{
		GeoidID:          id,
		SemanticFeatures: features,
		SymbolicState:    make(map[string]any),
		Metadata:         make(map[string]any),
	}
}

// CalculateEntropy returns the Shannon entropy (base 2) of the normalized
// semantic feature distribution. Empty and degenerate states have zero
// entropy.
func (s *State) CalculateEntropy() float64 {
	if s == nil || len(s.SemanticFeatures) == 0 {
		return 0
	}

	var total float64
	for _, v := range s.SemanticFeatures {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return 0
	}

	var entropy float64
	for _, v := range s.SemanticFeatures {
		if v <= 0 {
			continue
		}
		p := v / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// ActivationSum is the total mass of positive feature activations.
func (s *State) ActivationSum() float64 {
	if s == nil {
		return 0
	}
	var sum float64
	for _, v := range s.SemanticFeatures {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

// FeatureCount returns the number of semantic features.
func (s *State) FeatureCount() int {
	if s == nil {
		return 0
	}
	return len(s.SemanticFeatures)
}

// Normalize rescales positive feature activations to sum to 1.
// Non-positive features are dropped.
func (s *State) Normalize() {
	if s == nil {
		return
	}
	total := s.ActivationSum()
	if total == 0 {
		return
	}
	normalized := make(map[string]float64, len(s.SemanticFeatures))
	for k, v := range s.SemanticFeatures {
		if v > 0 {
			normalized[k] = v / total
		}
	}
	s.SemanticFeatures = normalized
}

// FeatureNames returns the feature keys in sorted order. Deterministic
// ordering matters for feature-opposition scoring and tests.
func (s *State) FeatureNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.SemanticFeatures))
	for k := range s.SemanticFeatures {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the state. Engines that correct
// transformations mutate the copy, never the stored geoid.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := &State{
		GeoidID:          s.GeoidID,
		SemanticFeatures: make(map[string]float64, len(s.SemanticFeatures)),
		SymbolicState:    make(map[string]any, len(s.SymbolicState)),
		Metadata:         make(map[string]any, len(s.Metadata)),
	}
	for k, v := range s.SemanticFeatures {
		c.SemanticFeatures[k] = v
	}
	for k, v := range s.SymbolicState {
		c.SymbolicState[k] = v
	}
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	if s.EmbeddingVector != nil {
		c.EmbeddingVector = append([]float32(nil), s.EmbeddingVector...)
	}
	return c
}

// SemanticPolarity measures the signed balance of a pair of geoids'
// shared features in [-1, 1]. Disjoint feature sets score zero.
func SemanticPolarity(a, b *State) float64 {
	if a == nil || b == nil {
		return 0
	}
	var shared, diff, total float64
	for k, va := range a.SemanticFeatures {
		vb, ok := b.SemanticFeatures[k]
		if !ok {
			continue
		}
		shared++
		diff += va - vb
		total += math.Abs(va) + math.Abs(vb)
	}
	if shared == 0 || total == 0 {
		return 0
	}
	p := diff / total
	return math.Max(-1, math.Min(1, p))
}
