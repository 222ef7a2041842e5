package stats

import (
	"math"
	"math/rand"
	"testing"

	"kimera/internal/geoid"
	"kimera/internal/vault"
)

func TestAnalyzeEntropySeriesTooShort(t *testing.T) {
	if _, err := AnalyzeEntropySeries([]float64{1, 2}); err == nil {
		t.Error("expected error for short series")
	}
}

func TestAnalyzeEntropySeriesBasics(t *testing.T) {
	series := []float64{1.0, 1.2, 1.1, 1.3, 1.2, 1.4, 1.3, 1.5}
	a, err := AnalyzeEntropySeries(series)
	if err != nil {
		t.Fatalf("AnalyzeEntropySeries failed: %v", err)
	}
	if a.Count != 8 {
		t.Errorf("count = %d, want 8", a.Count)
	}
	if math.Abs(a.Mean-1.25) > 1e-9 {
		t.Errorf("mean = %v, want 1.25", a.Mean)
	}
	if a.Min != 1.0 || a.Max != 1.5 {
		t.Errorf("min/max = %v/%v", a.Min, a.Max)
	}
	if a.Trend <= 0 {
		t.Errorf("trend = %v, want positive for rising series", a.Trend)
	}
}

func TestAR1ForecastMeanReverting(t *testing.T) {
	// x_t = 0.5 + 0.5*x_{t-1}, fixed point at 1.0.
	series := make([]float64, 30)
	series[0] = 2.0
	for i := 1; i < len(series); i++ {
		series[i] = 0.5 + 0.5*series[i-1]
	}

	a, err := AnalyzeEntropySeries(series)
	if err != nil {
		t.Fatalf("AnalyzeEntropySeries failed: %v", err)
	}
	if math.Abs(a.ARCoefficient-0.5) > 0.05 {
		t.Errorf("phi = %v, want ~0.5", a.ARCoefficient)
	}
	if math.Abs(a.Forecast-1.0) > 0.05 {
		t.Errorf("forecast = %v, want ~1.0 near the fixed point", a.Forecast)
	}
}

func TestStationarityDetection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	stationary := make([]float64, 100)
	for i := range stationary {
		stationary[i] = 1.0 + 0.1*rng.Float64()
	}
	a, err := AnalyzeEntropySeries(stationary)
	if err != nil {
		t.Fatalf("AnalyzeEntropySeries failed: %v", err)
	}
	if !a.Stationary {
		t.Error("noise around a constant should be stationary")
	}

	trending := make([]float64, 100)
	for i := range trending {
		trending[i] = float64(i) * 0.1
	}
	b, err := AnalyzeEntropySeries(trending)
	if err != nil {
		t.Fatalf("AnalyzeEntropySeries failed: %v", err)
	}
	if b.Stationary {
		t.Error("strongly trending series should not be stationary")
	}
}

func TestStationarityRejectsVarianceShift(t *testing.T) {
	// Flat mean but the spread explodes in the second half.
	series := make([]float64, 100)
	for i := range series {
		if i < 50 {
			series[i] = 1.0 + 0.001*float64(i%2)
		} else if i%2 == 0 {
			series[i] = 2.0
		} else {
			series[i] = 0.0
		}
	}
	a, err := AnalyzeEntropySeries(series)
	if err != nil {
		t.Fatalf("AnalyzeEntropySeries failed: %v", err)
	}
	if a.VarianceRatio < 4 {
		t.Errorf("variance ratio = %v, want >= 4", a.VarianceRatio)
	}
	if a.Stationary {
		t.Error("variance shift between halves should not be stationary")
	}
}

func testScar(cls, pol, mut, delta float64) *vault.Scar {
	s := vault.NewScar([]string{"GEOID_a", "GEOID_b"}, "r", "x", 1.0, 1.0+delta)
	s.ClsAngle = cls
	s.SemanticPolarity = pol
	s.MutationFrequency = mut
	return s
}

func TestAnalyzeContradictionFactorsRecovers(t *testing.T) {
	// delta = 0.2 + 0.01*cls - 0.5*polarity + 0*mutation, exactly.
	rng := rand.New(rand.NewSource(42))
	var scars []*vault.Scar
	for i := 0; i < 40; i++ {
		cls := rng.Float64() * 180
		pol := rng.Float64()*2 - 1
		mut := rng.Float64()
		delta := 0.2 + 0.01*cls - 0.5*pol
		scars = append(scars, testScar(cls, pol, mut, delta))
	}

	res, err := AnalyzeContradictionFactors(scars)
	if err != nil {
		t.Fatalf("AnalyzeContradictionFactors failed: %v", err)
	}
	if math.Abs(res.Intercept-0.2) > 1e-6 {
		t.Errorf("intercept = %v, want 0.2", res.Intercept)
	}
	if math.Abs(res.Coefficients[0]-0.01) > 1e-6 {
		t.Errorf("cls coefficient = %v, want 0.01", res.Coefficients[0])
	}
	if math.Abs(res.Coefficients[1]+0.5) > 1e-6 {
		t.Errorf("polarity coefficient = %v, want -0.5", res.Coefficients[1])
	}
	if math.Abs(res.Coefficients[2]) > 1e-6 {
		t.Errorf("mutation coefficient = %v, want 0", res.Coefficients[2])
	}
	if res.RSquared < 0.999 {
		t.Errorf("R2 = %v, want ~1 for noiseless data", res.RSquared)
	}
}

func TestAnalyzeContradictionFactorsTooFew(t *testing.T) {
	scars := []*vault.Scar{testScar(1, 0, 0, 0.1)}
	if _, err := AnalyzeContradictionFactors(scars); err == nil {
		t.Error("expected error for too few scars")
	}
}

func TestAnalyzeContradictionFactorsSingular(t *testing.T) {
	// Identical rows make X'X singular.
	var scars []*vault.Scar
	for i := 0; i < 10; i++ {
		scars = append(scars, testScar(45, 0.5, 0.5, 0.1))
	}
	if _, err := AnalyzeContradictionFactors(scars); err == nil {
		t.Error("expected singular matrix error")
	}
}

func TestAnalyzeSemanticMarket(t *testing.T) {
	big := geoid.NewState("GEOID_big", map[string]float64{"a": 3.0, "b": 1.0})
	small := geoid.NewState("GEOID_small", map[string]float64{"a": 1.0})
	scar := vault.NewScar([]string{"GEOID_big"}, "r", "x", 1.0, 1.1)

	report, err := AnalyzeSemanticMarket([]*geoid.State{small, big}, []*vault.Scar{scar})
	if err != nil {
		t.Fatalf("AnalyzeSemanticMarket failed: %v", err)
	}
	if report.MarketCap != 5.0 {
		t.Errorf("market cap = %v, want 5", report.MarketCap)
	}
	if report.Instruments[0].GeoidID != "GEOID_big" {
		t.Errorf("largest instrument = %s, want GEOID_big", report.Instruments[0].GeoidID)
	}
	if math.Abs(report.Instruments[0].Share-0.8) > 1e-9 {
		t.Errorf("big share = %v, want 0.8", report.Instruments[0].Share)
	}
	// Herfindahl: 0.8^2 + 0.2^2 = 0.68.
	if math.Abs(report.Concentration-0.68) > 1e-9 {
		t.Errorf("concentration = %v, want 0.68", report.Concentration)
	}
	if math.Abs(report.ContradictionPressure-0.5) > 1e-9 {
		t.Errorf("pressure = %v, want 0.5", report.ContradictionPressure)
	}
}

func TestAnalyzeSemanticMarketEmpty(t *testing.T) {
	if _, err := AnalyzeSemanticMarket(nil, nil); err == nil {
		t.Error("expected error for empty market")
	}
}
