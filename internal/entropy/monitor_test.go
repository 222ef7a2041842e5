package entropy

import (
	"math"
	"math/rand"
	"testing"

	"kimera/internal/geoid"
)

func testGeoids(n int, features int) []*geoid.State {
	rng := rand.New(rand.NewSource(42))
	out := make([]*geoid.State, n)
	for i := 0; i < n; i++ {
		f := make(map[string]float64, features)
		for j := 0; j < features; j++ {
			f[string(rune('a'+j))] = 0.1 + 0.8*rng.Float64()
		}
		out[i] = geoid.NewState("", f)
	}
	return out
}

func TestNewMonitorRejectsUnknownMethod(t *testing.T) {
	if _, err := NewMonitor("bootstrap", 10); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestCalculateSystemEntropyEmpty(t *testing.T) {
	m, err := NewMonitor(EstimatorMLE, 10)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	meas := m.CalculateSystemEntropy(nil, VaultInfo{})
	if meas.ShannonEntropy != 0 || meas.ThermodynamicEntropy != 0 || meas.GeoidCount != 0 {
		t.Errorf("empty system should measure zero, got %+v", meas)
	}
}

func TestEstimatorOrdering(t *testing.T) {
	// Miller-Madow adds a positive bias correction; chao_shen corrects for
	// unseen support. Both should be >= the plug-in estimate on small samples.
	counts := []float64{3, 1, 1, 1, 2}
	mleEst, _ := NewEstimator(EstimatorMLE)
	mmEst, _ := NewEstimator(EstimatorMillerMadow)
	csEst, _ := NewEstimator(EstimatorChaoShen)

	hMLE := mleEst.Entropy(counts)
	hMM := mmEst.Entropy(counts)
	hCS := csEst.Entropy(counts)

	if hMLE <= 0 {
		t.Fatalf("plug-in entropy should be positive, got %v", hMLE)
	}
	if hMM <= hMLE {
		t.Errorf("miller_madow (%v) should exceed mle (%v)", hMM, hMLE)
	}
	if hCS < hMLE {
		t.Errorf("chao_shen (%v) should not undercut mle (%v)", hCS, hMLE)
	}
}

func TestEstimatorIgnoresNonPositive(t *testing.T) {
	est, _ := NewEstimator(EstimatorMLE)
	if h := est.Entropy([]float64{0, -2, 0}); h != 0 {
		t.Errorf("non-positive counts should yield 0, got %v", h)
	}
	uniform := est.Entropy([]float64{1, 1, 0, -5, 1, 1})
	if math.Abs(uniform-2.0) > 1e-9 {
		t.Errorf("4 uniform counts should give 2 bits, got %v", uniform)
	}
}

func TestRelativeEntropy(t *testing.T) {
	if kl := RelativeEntropy([]float64{1, 1, 1, 1}); math.Abs(kl) > 1e-9 {
		t.Errorf("uniform KL = %v, want 0", kl)
	}
	if kl := RelativeEntropy([]float64{10, 1, 1}); kl <= 0 {
		t.Errorf("skewed distribution should have positive KL, got %v", kl)
	}
}

func TestMonitorHistoryBounded(t *testing.T) {
	m, _ := NewMonitor(EstimatorMLE, 5)
	geoids := testGeoids(3, 4)
	for i := 0; i < 12; i++ {
		m.CalculateSystemEntropy(geoids, VaultInfo{})
	}
	if got := len(m.History()); got != 5 {
		t.Errorf("history length = %d, want 5", got)
	}
	if _, ok := m.Latest(); !ok {
		t.Error("expected a latest measurement")
	}
}

func TestAdaptiveComplexityDifferentiatesPhases(t *testing.T) {
	m, _ := NewMonitor(EstimatorChaoShen, 10)
	geoids := testGeoids(8, 5)
	vault := VaultInfo{VaultAScars: 20, VaultBScars: 25}

	seen := map[float64]bool{}
	for _, phase := range []string{"exploration", "consolidation", "optimization"} {
		seen[m.AdaptiveComplexity(geoids, vault, phase)] = true
	}
	if len(seen) < 2 {
		t.Error("adaptive complexity should differentiate phases")
	}
}

func TestAdaptiveThresholdBehavior(t *testing.T) {
	base := AdaptiveThreshold(referenceEntropy, 0, 1.0)

	// Higher entropy loosens, degraded performance raises.
	if AdaptiveThreshold(3.0, 0, 1.0) <= base {
		t.Error("higher entropy should raise the threshold")
	}
	if AdaptiveThreshold(referenceEntropy, 0, 0.5) <= base {
		t.Error("degraded performance should raise the threshold")
	}

	// Bounds hold under extreme inputs.
	if v := AdaptiveThreshold(100, 1e6, 0); v > MaxThreshold {
		t.Errorf("threshold %v exceeds max", v)
	}
	if v := AdaptiveThreshold(-100, 0, 1); v < MinThreshold {
		t.Errorf("threshold %v below min", v)
	}
}

func TestIsInsightValid(t *testing.T) {
	th := AdaptiveThreshold(2.0, 50, 0.8)
	if !IsInsightValid(th+0.01, 2.0, 50, 0.8) {
		t.Error("reduction above threshold should be valid")
	}
	if IsInsightValid(th-0.01, 2.0, 50, 0.8) {
		t.Error("reduction below threshold should be invalid")
	}
}

func TestPredictabilityIndexPatterns(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	constant := make([]float64, 100)
	for i := range constant {
		constant[i] = 1.0
	}
	random := make([]float64, 100)
	for i := range random {
		random[i] = rng.Float64()
	}
	sine := make([]float64, 100)
	for i := range sine {
		sine[i] = math.Sin(float64(i) * 0.1)
	}

	cScore := PredictabilityIndex(constant)
	rScore := PredictabilityIndex(random)
	sScore := PredictabilityIndex(sine)

	if cScore != 1.0 {
		t.Errorf("constant score = %v, want 1.0", cScore)
	}
	if cScore <= rScore+0.1 {
		t.Errorf("constant (%v) should clearly exceed random (%v)", cScore, rScore)
	}
	if sScore <= rScore {
		t.Errorf("sine (%v) should exceed random (%v)", sScore, rScore)
	}
}

func TestThermodynamicAnalyzer(t *testing.T) {
	a := NewAnalyzer()
	geoids := testGeoids(6, 4)
	vault := VaultInfo{VaultAScars: 10, VaultBScars: 12}

	st := a.AnalyzeState(geoids, vault, 2.1)
	if st.TotalEnergy <= 0 {
		t.Errorf("total energy = %v, want positive", st.TotalEnergy)
	}
	if st.Pressure <= 0 {
		t.Errorf("pressure = %v, want positive with scars present", st.Pressure)
	}
	if st.EntropyProduction != 0 {
		t.Errorf("first measurement should have zero production, got %v", st.EntropyProduction)
	}

	st2 := a.AnalyzeState(geoids, vault, 2.5)
	if math.Abs(st2.EntropyProduction-0.4) > 1e-9 {
		t.Errorf("entropy production = %v, want 0.4", st2.EntropyProduction)
	}
}

func TestMonitorTrend(t *testing.T) {
	m, _ := NewMonitor(EstimatorMLE, 100)
	if m.Trend(10) != 0 {
		t.Error("trend with no history should be 0")
	}

	// Grow the system so entropy rises between measurements.
	g := testGeoids(2, 2)
	m.CalculateSystemEntropy(g, VaultInfo{})
	m.CalculateSystemEntropy(testGeoids(10, 6), VaultInfo{})
	if m.Trend(2) <= 0 {
		t.Errorf("trend = %v, want positive for growing system", m.Trend(2))
	}
}

func TestCalculateSystemEntropySkipsNilGeoids(t *testing.T) {
	m, err := NewMonitor(EstimatorMLE, 10)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	geoids := testGeoids(3, 4)
	withHole := []*geoid.State{geoids[0], nil, geoids[1], geoids[2], nil}

	got := m.CalculateSystemEntropy(withHole, VaultInfo{VaultAScars: 1})
	want := m.CalculateSystemEntropy(geoids, VaultInfo{VaultAScars: 1})

	if got.ShannonEntropy != want.ShannonEntropy {
		t.Errorf("shannon entropy with nil entries = %v, want %v", got.ShannonEntropy, want.ShannonEntropy)
	}
	if got.ThermodynamicEntropy != want.ThermodynamicEntropy {
		t.Errorf("thermodynamic entropy with nil entries = %v, want %v", got.ThermodynamicEntropy, want.ThermodynamicEntropy)
	}

	// Diversity-weighted complexity walks the same slices.
	if c := m.AdaptiveComplexity(withHole, VaultInfo{}, "exploration"); math.IsNaN(c) {
		t.Error("adaptive complexity returned NaN for slice with nil entries")
	}
}
