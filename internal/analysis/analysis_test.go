package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"kimera/internal/geoid"
	"kimera/internal/vault"
)

func seededVault(t *testing.T) *vault.Manager {
	t.Helper()
	m, err := vault.Open(":memory:")
	if err != nil {
		t.Fatalf("vault.Open failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	for i := 0; i < 3; i++ {
		st := geoid.NewState("", map[string]float64{"common": 1.0, "rare": float64(i)})
		if err := m.AddGeoid(st); err != nil {
			t.Fatalf("AddGeoid failed: %v", err)
		}
	}
	for i := 0; i < 4; i++ {
		reason := "auto-cycle"
		if i%2 == 0 {
			reason = "proactive-scan"
		}
		s := vault.NewScar([]string{"GEOID_x"}, reason, "contradiction_engine", 1.0, 1.0+float64(i)*0.1)
		if err := m.InsertScar(s); err != nil {
			t.Fatalf("InsertScar failed: %v", err)
		}
	}
	return m
}

func TestAnalyzeContent(t *testing.T) {
	m := seededVault(t)

	report, err := AnalyzeContent(m)
	if err != nil {
		t.Fatalf("AnalyzeContent failed: %v", err)
	}
	if report.TotalGeoids != 3 {
		t.Errorf("total geoids = %d, want 3", report.TotalGeoids)
	}
	if report.TotalScars != 4 {
		t.Errorf("total scars = %d, want 4", report.TotalScars)
	}
	if report.VaultDistribution[vault.VaultA] != 2 || report.VaultDistribution[vault.VaultB] != 2 {
		t.Errorf("vault distribution = %v, want balanced 2/2", report.VaultDistribution)
	}
	if report.VaultImbalance != 0 {
		t.Errorf("imbalance = %v, want 0", report.VaultImbalance)
	}
	if report.ReasonCounts["auto-cycle"] != 2 || report.ReasonCounts["proactive-scan"] != 2 {
		t.Errorf("reason counts = %v", report.ReasonCounts)
	}
	if report.ResolutionCounts["contradiction_engine"] != 4 {
		t.Errorf("resolution counts = %v", report.ResolutionCounts)
	}
	// Deltas are 0, 0.1, 0.2, 0.3: three positive.
	if report.DeltaEntropy.Positive != 3 || report.DeltaEntropy.Negative != 0 {
		t.Errorf("delta stats = %+v", report.DeltaEntropy)
	}
	if len(report.TopFeatures) == 0 || report.TopFeatures[0].Name != "common" {
		t.Errorf("top features = %v, want common first", report.TopFeatures)
	}
}

func TestAnalyzeContentEmptyVault(t *testing.T) {
	m, err := vault.Open(":memory:")
	if err != nil {
		t.Fatalf("vault.Open failed: %v", err)
	}
	defer m.Close()

	report, err := AnalyzeContent(m)
	if err != nil {
		t.Fatalf("AnalyzeContent failed: %v", err)
	}
	if report.TotalGeoids != 0 || report.TotalScars != 0 {
		t.Errorf("empty vault report = %+v", report)
	}
}

func TestSaveReport(t *testing.T) {
	m := seededVault(t)
	report, err := AnalyzeContent(m)
	if err != nil {
		t.Fatalf("AnalyzeContent failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := SaveReport(report, path); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("report file is empty")
	}
}
