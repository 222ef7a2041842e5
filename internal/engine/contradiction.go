// Package engine hosts the contradiction engine, thermodynamic validation,
// the cognitive cycle, and proactive contradiction scanning.
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// DefaultTensionThreshold is the composite score above which a geoid pair is
// treated as a contradiction.
const DefaultTensionThreshold = 0.3

// Component weights of the composite tension score.
const (
	weightEmbedding  = 0.45
	weightLayer      = 0.25
	weightOpposition = 0.30
)

// TensionGradient is a scored contradiction candidate between two geoids.
type TensionGradient struct {
	GeoidA       string  `json:"geoid_a"`
	GeoidB       string  `json:"geoid_b"`
	TensionScore float64 `json:"tension_score"`
	GradientType string  `json:"gradient_type"`
}

// ContradictionEngine detects semantic tension between geoid pairs.
type ContradictionEngine struct {
	TensionThreshold float64
}

// NewContradictionEngine returns an engine with the given threshold, or the
// default when threshold is non-positive.
func NewContradictionEngine(threshold float64) *ContradictionEngine {
	if threshold <= 0 {
		threshold = DefaultTensionThreshold
	}
	return &ContradictionEngine{TensionThreshold: threshold}
}

// ScoreTension computes the composite tension between two geoids: embedding
// misalignment, symbolic/semantic layer conflict, and feature opposition.
func (e *ContradictionEngine) ScoreTension(a, b *geoid.State) TensionGradient {
	emb := embeddingMisalignment(a, b)
	layer := layerConflict(a, b)
	opp := featureOpposition(a, b)

	score := weightEmbedding*emb + weightLayer*layer + weightOpposition*opp
	return TensionGradient{
		GeoidA:       a.GeoidID,
		GeoidB:       b.GeoidID,
		TensionScore: score,
		GradientType: dominantComponent(emb, layer, opp),
	}
}

// DetectTensionGradients scores all pairs and returns those above the
// threshold, strongest first.
func (e *ContradictionEngine) DetectTensionGradients(geoids []*geoid.State) []TensionGradient {
	var out []TensionGradient
	for i := 0; i < len(geoids); i++ {
		for j := i + 1; j < len(geoids); j++ {
			g := e.ScoreTension(geoids[i], geoids[j])
			if g.TensionScore > e.TensionThreshold {
				out = append(out, g)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TensionScore > out[j].TensionScore })
	logging.EngineDebug("Tension detection over %d geoids found %d gradients", len(geoids), len(out))
	return out
}

// ClsAngle returns the angle in degrees between the two geoids' embeddings,
// or the angle between their feature profiles when embeddings are missing.
func ClsAngle(a, b *geoid.State) float64 {
	var cos float64
	if len(a.EmbeddingVector) > 0 && len(a.EmbeddingVector) == len(b.EmbeddingVector) {
		cos = geoid.CosineSimilarity(a.EmbeddingVector, b.EmbeddingVector)
	} else {
		cos = featureCosine(a, b)
	}
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// embeddingMisalignment maps cosine similarity onto [0,1] tension. Missing
// or mismatched embeddings fall back to feature-space cosine.
func embeddingMisalignment(a, b *geoid.State) float64 {
	var cos float64
	if len(a.EmbeddingVector) > 0 && len(a.EmbeddingVector) == len(b.EmbeddingVector) {
		cos = geoid.CosineSimilarity(a.EmbeddingVector, b.EmbeddingVector)
	} else {
		cos = featureCosine(a, b)
	}
	return (1 - cos) / 2
}

// layerConflict measures disagreement between the symbolic layer and the
// semantic layer: features of one geoid that the other's symbolic state
// never mentions, weighted by activation share.
func layerConflict(a, b *geoid.State) float64 {
	symA := symbolicText(a)
	symB := symbolicText(b)
	if symA == "" && symB == "" {
		return 0
	}
	conflict := 0.0
	checks := 0
	for _, pair := range []struct {
		sym   string
		other *geoid.State
	}{{symA, b}, {symB, a}} {
		if pair.sym == "" {
			continue
		}
		sum := pair.other.ActivationSum()
		for name, weight := range pair.other.SemanticFeatures {
			checks++
			if containsSymbol(pair.sym, name) {
				continue
			}
			if sum > 0 && weight > 0 {
				conflict += weight / sum
			}
		}
	}
	if checks == 0 {
		return 0
	}
	if conflict > 1 {
		conflict = 1
	}
	return conflict / 2
}

// symbolicText flattens a geoid's symbolic state values into one searchable
// string.
func symbolicText(s *geoid.State) string {
	if len(s.SymbolicState) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, k := range sortedKeys(s.SymbolicState) {
		sb.WriteString(fmt.Sprint(s.SymbolicState[k]))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// featureOpposition maps semantic polarity onto [0,1]: shared features with
// strongly opposed dominance raise tension.
func featureOpposition(a, b *geoid.State) float64 {
	return math.Abs(geoid.SemanticPolarity(a, b))
}

func featureCosine(a, b *geoid.State) float64 {
	var dot, na, nb float64
	for name, av := range a.SemanticFeatures {
		na += av * av
		if bv, ok := b.SemanticFeatures[name]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b.SemanticFeatures {
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func containsSymbol(symbolic, name string) bool {
	// Symbolic states are short s-expressions; a plain substring check on
	// token boundaries is enough here.
	for i := 0; i+len(name) <= len(symbolic); i++ {
		if symbolic[i:i+len(name)] != name {
			continue
		}
		beforeOK := i == 0 || !isSymbolChar(symbolic[i-1])
		afterOK := i+len(name) == len(symbolic) || !isSymbolChar(symbolic[i+len(name)])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isSymbolChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func dominantComponent(emb, layer, opp float64) string {
	switch {
	case emb >= layer && emb >= opp:
		return "embedding_misalignment"
	case layer >= opp:
		return "layer_conflict"
	default:
		return "composite_tension"
	}
}
