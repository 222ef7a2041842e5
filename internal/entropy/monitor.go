package entropy

import (
	"math"
	"sync"
	"time"

	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// VaultInfo carries the vault counters the monitor folds into system
// complexity.
type VaultInfo struct {
	ActiveGeoids int `json:"active_geoids"`
	VaultAScars  int `json:"vault_a_scars"`
	VaultBScars  int `json:"vault_b_scars"`
}

// Measurement is one entropy snapshot of the system.
type Measurement struct {
	Timestamp            time.Time      `json:"timestamp"`
	ShannonEntropy       float64        `json:"shannon_entropy"`
	ThermodynamicEntropy float64        `json:"thermodynamic_entropy"`
	RelativeEntropy      float64        `json:"relative_entropy"`
	SystemComplexity     float64        `json:"system_complexity"`
	GeoidCount           int            `json:"geoid_count"`
	VaultAScars          int            `json:"vault_a_scars"`
	VaultBScars          int            `json:"vault_b_scars"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// Monitor estimates system entropy over the live geoid population and keeps
// a bounded measurement history.
type Monitor struct {
	mu          sync.RWMutex
	estimator   *Estimator
	history     []Measurement
	historySize int
}

// NewMonitor builds a monitor with the given estimation method. historySize
// bounds the retained measurements; non-positive means 1000.
func NewMonitor(method string, historySize int) (*Monitor, error) {
	est, err := NewEstimator(method)
	if err != nil {
		return nil, err
	}
	if historySize <= 0 {
		historySize = 1000
	}
	return &Monitor{estimator: est, historySize: historySize}, nil
}

// CalculateSystemEntropy measures the current system state. An empty geoid
// slice produces a zero measurement, not an error: an idle system has
// nothing to be uncertain about.
func (m *Monitor) CalculateSystemEntropy(geoids []*geoid.State, vault VaultInfo) Measurement {
	timer := logging.StartTimer(logging.CategoryEntropy, "CalculateSystemEntropy")
	defer timer.Stop()

	counts := aggregateFeatureMasses(geoids)

	meas := Measurement{
		Timestamp:            time.Now().UTC(),
		ShannonEntropy:       m.estimator.Entropy(counts),
		ThermodynamicEntropy: thermodynamicEntropy(geoids),
		RelativeEntropy:      RelativeEntropy(counts),
		SystemComplexity:     systemComplexity(geoids, vault),
		GeoidCount:           len(geoids),
		VaultAScars:          vault.VaultAScars,
		VaultBScars:          vault.VaultBScars,
		Metadata: map[string]any{
			"estimation_method": m.estimator.Method,
			"feature_count":     len(counts),
		},
	}

	m.mu.Lock()
	m.history = append(m.history, meas)
	if len(m.history) > m.historySize {
		m.history = m.history[len(m.history)-m.historySize:]
	}
	m.mu.Unlock()

	logging.EntropyDebug("System entropy: shannon=%.4f thermo=%.4f complexity=%.2f geoids=%d",
		meas.ShannonEntropy, meas.ThermodynamicEntropy, meas.SystemComplexity, len(geoids))
	return meas
}

// AdaptiveComplexity recomputes system complexity with a phase-dependent
// weighting so exploration, consolidation and optimization regimes separate.
func (m *Monitor) AdaptiveComplexity(geoids []*geoid.State, vault VaultInfo, phase string) float64 {
	base := systemComplexity(geoids, vault)
	diversity := featureDiversity(geoids)

	switch phase {
	case "exploration":
		// Exploration rewards breadth: unique features dominate.
		return base * (1 + 0.5*diversity)
	case "consolidation":
		// Consolidation discounts redundancy across geoids.
		return base * (1 - 0.25*(1-diversity))
	case "optimization":
		// Optimization prizes a compact feature set.
		return base * (0.6 + 0.2*diversity)
	default:
		return base
	}
}

// History returns a copy of the retained measurements.
func (m *Monitor) History() []Measurement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Measurement, len(m.history))
	copy(out, m.history)
	return out
}

// Latest returns the most recent measurement, if any.
func (m *Monitor) Latest() (Measurement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return Measurement{}, false
	}
	return m.history[len(m.history)-1], true
}

// Trend returns the average per-step Shannon entropy change over the last
// window measurements. Fewer than two measurements yield zero.
func (m *Monitor) Trend(window int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.history)
	if n < 2 {
		return 0
	}
	if window <= 0 || window > n {
		window = n
	}
	recent := m.history[n-window:]
	if len(recent) < 2 {
		return 0
	}
	delta := recent[len(recent)-1].ShannonEntropy - recent[0].ShannonEntropy
	return delta / float64(len(recent)-1)
}

// aggregateFeatureMasses sums positive activations per feature name across
// all geoids.
func aggregateFeatureMasses(geoids []*geoid.State) []float64 {
	masses := make(map[string]float64)
	for _, g := range geoids {
		if g == nil {
			continue
		}
		for name, v := range g.SemanticFeatures {
			if v > 0 {
				masses[name] += v
			}
		}
	}
	counts := make([]float64, 0, len(masses))
	for _, v := range masses {
		counts = append(counts, v)
	}
	return counts
}

// thermodynamicEntropy is the Gibbs entropy (nats) of the geoid energy
// distribution, where a geoid's energy is its activation sum.
func thermodynamicEntropy(geoids []*geoid.State) float64 {
	var total float64
	energies := make([]float64, 0, len(geoids))
	for _, g := range geoids {
		if g == nil {
			continue
		}
		e := g.ActivationSum()
		if e > 0 {
			energies = append(energies, e)
			total += e
		}
	}
	if total == 0 {
		return 0
	}
	var s float64
	for _, e := range energies {
		p := e / total
		s -= p * math.Log(p)
	}
	return s
}

// systemComplexity blends structural size with vault pressure.
func systemComplexity(geoids []*geoid.State, vault VaultInfo) float64 {
	var features, activation float64
	for _, g := range geoids {
		if g == nil {
			continue
		}
		features += float64(g.FeatureCount())
		activation += g.ActivationSum()
	}
	scarPressure := float64(vault.VaultAScars + vault.VaultBScars)
	return features*1.5 + float64(len(geoids))*2.0 + activation + scarPressure*0.5
}

// featureDiversity is the fraction of distinct features among all feature
// slots, in [0,1]. All-unique features score 1.
func featureDiversity(geoids []*geoid.State) float64 {
	seen := make(map[string]struct{})
	var slots float64
	for _, g := range geoids {
		if g == nil {
			continue
		}
		for name := range g.SemanticFeatures {
			seen[name] = struct{}{}
			slots++
		}
	}
	if slots == 0 {
		return 0
	}
	return float64(len(seen)) / slots
}
