package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"kimera/internal/analysis"
	"kimera/internal/config"
	"kimera/internal/printer"
	"kimera/internal/vault"
)

var analyzeOut string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze vault contents",
	Long: `Walks the vault and reports geoid/scar distribution, scar reasons,
entropy deltas, dominant semantic features, and understanding-layer
maturity.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Write the JSON report to this path")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbPath := cfg.Vault.DatabasePath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	v, err := vault.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	defer v.Close()

	report, err := analysis.AnalyzeContent(v)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printer.Header("Vault content analysis")
	printer.KV("geoids", report.TotalGeoids)
	printer.KV("scars", report.TotalScars)
	printer.KV("vault imbalance", fmt.Sprintf("%.3f", report.VaultImbalance))
	for vaultID, count := range report.VaultDistribution {
		printer.KV(vaultID, count)
	}

	if report.TotalScars > 0 {
		printer.Subheader("Scar entropy delta")
		printer.KV("mean", fmt.Sprintf("%.4f", report.DeltaEntropy.Mean))
		printer.KV("std dev", fmt.Sprintf("%.4f", report.DeltaEntropy.StdDev))
		printer.KV("positive / negative", fmt.Sprintf("%d / %d", report.DeltaEntropy.Positive, report.DeltaEntropy.Negative))
	}

	if len(report.TopFeatures) > 0 {
		printer.Subheader("Top semantic features")
		limit := len(report.TopFeatures)
		if limit > 10 {
			limit = 10
		}
		for _, fc := range report.TopFeatures[:limit] {
			printer.KV(fc.Name, fc.Count)
		}
	}

	if report.Understanding != nil {
		printer.Subheader("Understanding layer")
		printer.KV("causal relationships", report.Understanding.CausalRelationships)
		printer.KV("abstract concepts", report.Understanding.AbstractConcepts)
		printer.KV("self models", report.Understanding.SelfModels)
		printer.KV("maturity score", fmt.Sprintf("%.3f", report.Understanding.MaturityScore))
	}

	if analyzeOut != "" {
		if err := analysis.SaveReport(report, analyzeOut); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		printer.Success("Report written to %s", analyzeOut)
	}
	return nil
}
