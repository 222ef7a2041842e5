// Package analysis builds content reports over the vault: scar reason and
// resolution distributions, vault balance, entropy-delta statistics, and
// feature frequency across active geoids.
package analysis

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"time"

	"kimera/internal/logging"
	"kimera/internal/vault"
)

// DeltaEntropyStats summarizes scar entropy changes.
type DeltaEntropyStats struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
}

// ContentReport is a full vault content analysis.
type ContentReport struct {
	GeneratedAt       time.Time                   `json:"generated_at"`
	TotalGeoids       int                         `json:"total_geoids"`
	TotalScars        int                         `json:"total_scars"`
	VaultDistribution map[string]int              `json:"vault_distribution"`
	ReasonCounts      map[string]int              `json:"reason_counts"`
	ResolutionCounts  map[string]int              `json:"resolution_counts"`
	DeltaEntropy      DeltaEntropyStats           `json:"delta_entropy"`
	TopFeatures       []FeatureCount              `json:"top_features"`
	VaultImbalance    float64                     `json:"vault_imbalance"`
	Understanding     *vault.UnderstandingMetrics `json:"understanding,omitempty"`
}

// FeatureCount is one semantic feature's frequency across geoids.
type FeatureCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

const topFeatureLimit = 20

// AnalyzeContent walks the vault and produces the content report.
func AnalyzeContent(m *vault.Manager) (*ContentReport, error) {
	timer := logging.StartTimer(logging.CategoryVault, "AnalyzeContent")
	defer timer.Stop()

	report := &ContentReport{
		GeneratedAt:       time.Now().UTC(),
		VaultDistribution: make(map[string]int),
		ReasonCounts:      make(map[string]int),
		ResolutionCounts:  make(map[string]int),
	}

	geoids, err := m.ListActiveGeoids()
	if err != nil {
		return nil, err
	}
	report.TotalGeoids = len(geoids)

	featureFreq := make(map[string]int)
	for _, g := range geoids {
		for name := range g.SemanticFeatures {
			featureFreq[name]++
		}
	}
	for name, count := range featureFreq {
		report.TopFeatures = append(report.TopFeatures, FeatureCount{Name: name, Count: count})
	}
	sort.Slice(report.TopFeatures, func(i, j int) bool {
		if report.TopFeatures[i].Count != report.TopFeatures[j].Count {
			return report.TopFeatures[i].Count > report.TopFeatures[j].Count
		}
		return report.TopFeatures[i].Name < report.TopFeatures[j].Name
	})
	if len(report.TopFeatures) > topFeatureLimit {
		report.TopFeatures = report.TopFeatures[:topFeatureLimit]
	}

	var deltas []float64
	for _, vaultID := range []string{vault.VaultA, vault.VaultB} {
		scars, err := m.GetScarsByVault(vaultID, 100000)
		if err != nil {
			return nil, err
		}
		report.VaultDistribution[vaultID] = len(scars)
		report.TotalScars += len(scars)
		for _, s := range scars {
			report.ReasonCounts[s.Reason]++
			report.ResolutionCounts[s.ResolvedBy]++
			deltas = append(deltas, s.DeltaEntropy)
		}
	}

	if report.TotalScars > 0 {
		a := report.VaultDistribution[vault.VaultA]
		b := report.VaultDistribution[vault.VaultB]
		report.VaultImbalance = math.Abs(float64(a-b)) / float64(report.TotalScars)
	}
	report.DeltaEntropy = deltaStats(deltas)

	if metrics, err := m.Understanding(); err == nil {
		report.Understanding = metrics
	}

	logging.Vault("Content analysis: %d geoids, %d scars, imbalance=%.3f",
		report.TotalGeoids, report.TotalScars, report.VaultImbalance)
	return report, nil
}

// SaveReport writes the report as indented JSON.
func SaveReport(report *ContentReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func deltaStats(deltas []float64) DeltaEntropyStats {
	stats := DeltaEntropyStats{}
	if len(deltas) == 0 {
		return stats
	}
	stats.Min = deltas[0]
	stats.Max = deltas[0]
	for _, d := range deltas {
		stats.Mean += d
		if d < stats.Min {
			stats.Min = d
		}
		if d > stats.Max {
			stats.Max = d
		}
		if d > 0 {
			stats.Positive++
		} else if d < 0 {
			stats.Negative++
		}
	}
	stats.Mean /= float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		variance += (d - stats.Mean) * (d - stats.Mean)
	}
	stats.StdDev = math.Sqrt(variance / float64(len(deltas)))
	return stats
}
