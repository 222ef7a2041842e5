package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kimera/internal/bench"
	"kimera/internal/config"
	"kimera/internal/printer"
)

var (
	stressGeoids   int
	stressSearches int
	stressWorkers  int
	stressOut      string
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Stress-test the cognitive field engine",
	Long: `Measures geoid creation throughput across batch sizes and parallel
neighbor-search throughput against an in-memory field, while a background
poller samples heap and goroutine counts.`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().IntVar(&stressGeoids, "geoids", 1000, "Geoids per creation phase")
	stressCmd.Flags().IntVar(&stressSearches, "searches", 200, "Neighbor searches in the search phase")
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 0, "Worker goroutines (0 = NumCPU)")
	stressCmd.Flags().StringVar(&stressOut, "out", "", "Write the JSON report to this path")
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	stress := bench.NewStress(cfg.Field.Dimension)
	if stressGeoids > 0 {
		stress.GeoidCount = stressGeoids
	}
	if stressSearches > 0 {
		stress.SearchCount = stressSearches
	}
	if stressWorkers > 0 {
		stress.Workers = stressWorkers
	}

	printer.Header("Field stress test")
	printer.KV("dimension", stress.Dimension)
	printer.KV("geoids", stress.GeoidCount)
	printer.KV("workers", stress.Workers)

	report, err := stress.Run(cmd.Context())
	if err != nil {
		return err
	}

	printer.Subheader("Creation throughput")
	for _, phase := range report.Creation {
		printer.KV(fmt.Sprintf("batch %d", phase.BatchSize),
			fmt.Sprintf("%.0f geoids/s (%.1fms)", phase.GeoidsPerSec, phase.DurationMs))
	}

	printer.Subheader("Neighbor search")
	printer.KV("searches", report.Search.Searches)
	printer.KV("throughput", fmt.Sprintf("%.0f searches/s", report.Search.SearchesPerSec))

	if len(report.Memory) > 0 {
		last := report.Memory[len(report.Memory)-1]
		printer.Subheader("Memory")
		printer.KV("peak heap sample", fmt.Sprintf("%.1f MB", last.HeapMB))
		printer.KV("samples", len(report.Memory))
	}

	if stressOut != "" {
		if err := bench.SaveReport(report, stressOut); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		printer.Success("Report written to %s", stressOut)
	}
	return nil
}
