package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kimera/internal/config"
	"kimera/internal/engine"
	"kimera/internal/printer"
	"kimera/internal/trading"
)

var (
	simulateMode string
	simulateSeed int64
	simulateOut  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the semantic trading simulation",
	Long: `Runs the contradiction-driven trading simulation against a synthetic
market: the reactor trades divergences between price action and sentiment,
under the configured risk limits. Simulation only, no live orders.

Modes: full (96 cycles), accelerated (15), quick (5).`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMode, "mode", trading.ModeAccelerated, "Simulation mode: full, accelerated, quick")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", time.Now().UnixNano(), "Market seed (fixed seed gives a reproducible run)")
	simulateCmd.Flags().StringVar(&simulateOut, "out", "", "Write the JSON report to this path")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connector, err := trading.NewSyntheticConnector(cfg.Trading.Watchlist, simulateSeed)
	if err != nil {
		return fmt.Errorf("failed to build market connector: %w", err)
	}
	risk, err := trading.NewRiskManager(
		cfg.Trading.RiskPerTrade,
		cfg.Trading.MaxPositionSize,
		cfg.Trading.StopLoss,
		cfg.Trading.TakeProfit,
	)
	if err != nil {
		return fmt.Errorf("invalid risk settings: %w", err)
	}
	reactor := trading.NewReactor(engine.NewContradictionEngine(cfg.Contradiction.TensionThreshold))

	sim, err := trading.NewSimulation(connector, reactor, risk, cfg.Trading.StartingCapital)
	if err != nil {
		return err
	}

	printer.Header("Semantic trading simulation")
	printer.KV("mode", simulateMode)
	printer.KV("watchlist", fmt.Sprintf("%d symbols", len(cfg.Trading.Watchlist)))
	printer.KV("starting capital", fmt.Sprintf("$%.2f", cfg.Trading.StartingCapital))

	report, err := sim.Run(cmd.Context(), simulateMode)
	if err != nil {
		return err
	}

	printer.Subheader("Results")
	printer.KV("cycles", report.Cycles)
	printer.KV("final value", fmt.Sprintf("$%.4f", report.FinalValue))
	printer.KV("return", fmt.Sprintf("%+.2f%%", report.ReturnPct))
	printer.KV("trades", len(report.Trades))
	printer.KV("win rate", fmt.Sprintf("%.0f%%", report.WinRate*100))
	printer.KV("max drawdown", fmt.Sprintf("%.2f%%", report.MaxDrawdown*100))

	if report.PnL >= 0 {
		printer.Success("PnL %+.4f over %s", report.PnL, report.Duration.Round(time.Millisecond))
	} else {
		printer.Warning("PnL %+.4f over %s", report.PnL, report.Duration.Round(time.Millisecond))
	}

	if simulateOut != "" {
		if err := trading.SaveReport(report, simulateOut); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		printer.Success("Report written to %s", simulateOut)
	}
	return nil
}
