package engine

import (
	"context"
	"math"
	"time"

	"kimera/internal/entropy"
	"kimera/internal/geoid"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

// CycleResult is the outcome of one cognitive cycle.
type CycleResult struct {
	Status        string        `json:"status"`
	EntropyBefore float64       `json:"entropy_before"`
	EntropyAfter  float64       `json:"entropy_after"`
	EntropyDelta  float64       `json:"entropy_delta"`
	TensionsFound int           `json:"tensions_found"`
	ScarsCreated  int           `json:"scars_created"`
	GeoidCount    int           `json:"geoid_count"`
	Duration      time.Duration `json:"duration"`
}

// Cycle statuses.
const (
	CycleComplete   = "complete"
	CycleNoActivity = "no_activity"
)

// CognitiveCycle runs the measure / detect / collapse loop over the vault.
type CognitiveCycle struct {
	vault   *vault.Manager
	contra  *ContradictionEngine
	monitor *entropy.Monitor
}

// NewCognitiveCycle wires a cycle over the given vault, engine, and monitor.
func NewCognitiveCycle(v *vault.Manager, e *ContradictionEngine, m *entropy.Monitor) *CognitiveCycle {
	return &CognitiveCycle{vault: v, contra: e, monitor: m}
}

// Run executes one full cycle: measure system entropy, detect tension
// gradients across active geoids, collapse each into a scar, then measure
// again. Contradiction processing stops early when ctx is canceled.
func (c *CognitiveCycle) Run(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryCycle, "Run")
	defer timer.Stop()

	geoids, err := c.vault.ListActiveGeoids()
	if err != nil {
		return nil, err
	}
	res := &CycleResult{GeoidCount: len(geoids)}
	if len(geoids) < 2 {
		res.Status = CycleNoActivity
		res.Duration = time.Since(start)
		return res, nil
	}

	before := c.measure(geoids)
	res.EntropyBefore = before.ShannonEntropy

	tensions := c.contra.DetectTensionGradients(geoids)
	res.TensionsFound = len(tensions)

	byID := make(map[string]*geoid.State, len(geoids))
	for _, g := range geoids {
		byID[g.GeoidID] = g
	}

	for _, t := range tensions {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		if _, err := c.Collapse(t, byID[t.GeoidA], byID[t.GeoidB], before.ShannonEntropy); err != nil {
			return res, err
		}
		res.ScarsCreated++
	}

	after := c.measure(geoids)
	res.EntropyAfter = after.ShannonEntropy
	res.EntropyDelta = res.EntropyAfter - res.EntropyBefore
	res.Status = CycleComplete
	res.Duration = time.Since(start)

	logging.Cycle("Cycle complete: %d geoids, %d tensions, %d scars, entropy %.4f -> %.4f",
		res.GeoidCount, res.TensionsFound, res.ScarsCreated, res.EntropyBefore, res.EntropyAfter)
	return res, nil
}

// Collapse resolves one tension gradient into a scar and stores it.
func (c *CognitiveCycle) Collapse(t TensionGradient, a, b *geoid.State, preEntropy float64) (*vault.Scar, error) {
	s := vault.NewScar([]string{t.GeoidA, t.GeoidB}, "auto-cycle", "contradiction_engine",
		preEntropy, preEntropy+scarEntropyGain(t.TensionScore))
	if a != nil && b != nil {
		s.ClsAngle = ClsAngle(a, b)
		s.SemanticPolarity = geoid.SemanticPolarity(a, b)
	}
	s.MutationFrequency = t.TensionScore
	if err := c.vault.InsertScar(s); err != nil {
		return nil, err
	}
	return s, nil
}

// measure takes a system entropy reading with current vault counts folded in.
func (c *CognitiveCycle) measure(geoids []*geoid.State) entropy.Measurement {
	a, b, err := c.vault.ScarCounts()
	if err != nil {
		logging.CycleDebug("Scar counts unavailable during measurement: %v", err)
	}
	return c.monitor.CalculateSystemEntropy(geoids, entropy.VaultInfo{
		ActiveGeoids: len(geoids),
		VaultAScars:  a,
		VaultBScars:  b,
	})
}

// scarEntropyGain maps a tension score onto the entropy added by recording
// its scar. Stronger tensions carry more information when collapsed.
func scarEntropyGain(score float64) float64 {
	return 0.1 * math.Log2(1+score)
}
