package entropy

import (
	"math"
	"sync"
	"time"

	"kimera/internal/geoid"
)

// ThermodynamicState summarizes the system in thermodynamic terms. Energies
// are activation masses; temperature is energy variance per geoid.
type ThermodynamicState struct {
	Timestamp         time.Time `json:"timestamp"`
	TotalEnergy       float64   `json:"total_energy"`
	Temperature       float64   `json:"temperature"`
	Pressure          float64   `json:"pressure"`
	Entropy           float64   `json:"entropy"`
	FreeEnergy        float64   `json:"free_energy"`
	EntropyProduction float64   `json:"entropy_production"`
}

// Analyzer derives thermodynamic state from the geoid population. It keeps
// the previous entropy to report entropy production between calls.
type Analyzer struct {
	mu          sync.Mutex
	lastEntropy float64
	hasLast     bool
}

// NewAnalyzer returns a fresh analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// AnalyzeState computes the thermodynamic snapshot. shannonEntropy is the
// monitor's current measurement; passing it in keeps the two views of the
// system consistent.
func (a *Analyzer) AnalyzeState(geoids []*geoid.State, vault VaultInfo, shannonEntropy float64) ThermodynamicState {
	var total float64
	energies := make([]float64, 0, len(geoids))
	for _, g := range geoids {
		e := g.ActivationSum()
		energies = append(energies, e)
		total += e
	}

	temperature := energyVariance(energies)
	pressure := float64(vault.VaultAScars+vault.VaultBScars) / float64(len(geoids)+1)
	free := total - temperature*shannonEntropy

	a.mu.Lock()
	production := 0.0
	if a.hasLast {
		production = shannonEntropy - a.lastEntropy
	}
	a.lastEntropy = shannonEntropy
	a.hasLast = true
	a.mu.Unlock()

	return ThermodynamicState{
		Timestamp:         time.Now().UTC(),
		TotalEnergy:       total,
		Temperature:       temperature,
		Pressure:          pressure,
		Entropy:           shannonEntropy,
		FreeEnergy:        free,
		EntropyProduction: production,
	}
}

// energyVariance is the population variance of geoid energies. A uniform
// population is "cold": zero variance, zero temperature.
func energyVariance(energies []float64) float64 {
	if len(energies) == 0 {
		return 0
	}
	var mean float64
	for _, e := range energies {
		mean += e
	}
	mean /= float64(len(energies))

	var variance float64
	for _, e := range energies {
		d := e - mean
		variance += d * d
	}
	variance /= float64(len(energies))
	return math.Sqrt(variance)
}
