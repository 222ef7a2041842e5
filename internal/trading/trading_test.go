package trading

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimera/internal/engine"
)

func TestSyntheticConnectorDeterministic(t *testing.T) {
	watch := []string{"BTCUSDT", "ETHUSDT"}
	a, err := NewSyntheticConnector(watch, 42)
	require.NoError(t, err)
	b, err := NewSyntheticConnector(watch, 42)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ta, err := a.Fetch(ctx)
		require.NoError(t, err)
		tb, err := b.Fetch(ctx)
		require.NoError(t, err)
		require.Equal(t, ta, tb, "same seed must yield identical ticks")
	}
}

func TestSyntheticConnectorShape(t *testing.T) {
	c, err := NewSyntheticConnector([]string{"SOLUSDT"}, 7)
	require.NoError(t, err)

	ticks, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "SOLUSDT", ticks[0].Symbol)
	assert.Greater(t, ticks[0].Price, 0.0)
	assert.GreaterOrEqual(t, ticks[0].Sentiment, -1.0)
	assert.LessOrEqual(t, ticks[0].Sentiment, 1.0)

	_, err = NewSyntheticConnector(nil, 1)
	assert.Error(t, err)
}

func TestSyntheticConnectorRespectsContext(t *testing.T) {
	c, err := NewSyntheticConnector([]string{"BTCUSDT"}, 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRiskManagerDefaults(t *testing.T) {
	rm, err := NewRiskManager(0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRiskPerTrade, rm.RiskPerTrade)
	assert.Equal(t, DefaultMaxPositionSize, rm.MaxPositionSize)
	assert.Equal(t, DefaultStopLoss, rm.StopLoss)
	assert.Equal(t, DefaultTakeProfit, rm.TakeProfit)

	_, err = NewRiskManager(1.5, 0, 0, 0)
	assert.Error(t, err)
	_, err = NewRiskManager(0, -0.2, 0, 0)
	assert.Error(t, err)
}

func TestPositionSizeCappedByMaxPosition(t *testing.T) {
	rm, err := NewRiskManager(0, 0, 0, 0)
	require.NoError(t, err)

	// 5% risk at full confidence over a 2% stop would want 2.5x the
	// portfolio; the 30% cap binds.
	size := rm.PositionSize(1.0, 1.0)
	assert.InDelta(t, 0.30, size, 1e-9)

	// Tiny confidence stays under the cap: 1.0 * 0.05 * 0.1 / 0.02 = 0.25.
	size = rm.PositionSize(1.0, 0.1)
	assert.InDelta(t, 0.25, size, 1e-9)

	assert.Zero(t, rm.PositionSize(0, 1))
	assert.Zero(t, rm.PositionSize(1, 0))
}

func TestShouldExit(t *testing.T) {
	rm, err := NewRiskManager(0, 0, 0, 0)
	require.NoError(t, err)

	exit, reason := rm.ShouldExit(100, 97.9)
	assert.True(t, exit)
	assert.Equal(t, "stop_loss", reason)

	exit, reason = rm.ShouldExit(100, 106.1)
	assert.True(t, exit)
	assert.Equal(t, "take_profit", reason)

	exit, _ = rm.ShouldExit(100, 101)
	assert.False(t, exit)

	exit, _ = rm.ShouldExit(0, 50)
	assert.False(t, exit)
}

func TestReactorFirstSightingHolds(t *testing.T) {
	r := NewReactor(engine.NewContradictionEngine(0))
	signals := r.React([]Tick{{Symbol: "BTCUSDT", Price: 100, Sentiment: 0.9}})
	require.Len(t, signals, 1)
	assert.Equal(t, ActionHold, signals[0].Action)
}

func TestReactorBuysOnBullishDivergence(t *testing.T) {
	r := NewReactor(engine.NewContradictionEngine(0))
	r.React([]Tick{{Symbol: "BTCUSDT", Price: 100, Sentiment: 0.9}})
	// Price drops hard while sentiment stays strongly positive.
	signals := r.React([]Tick{{Symbol: "BTCUSDT", Price: 95, Sentiment: 0.9}})
	require.Len(t, signals, 1)
	assert.Equal(t, ActionBuy, signals[0].Action)
	assert.Greater(t, signals[0].Tension, 0.3)
	assert.Greater(t, signals[0].Confidence, 0.0)
}

func TestReactorSellsOnBearishDivergence(t *testing.T) {
	r := NewReactor(engine.NewContradictionEngine(0))
	r.React([]Tick{{Symbol: "ETHUSDT", Price: 100, Sentiment: -0.9}})
	signals := r.React([]Tick{{Symbol: "ETHUSDT", Price: 105, Sentiment: -0.9}})
	require.Len(t, signals, 1)
	assert.Equal(t, ActionSell, signals[0].Action)
}

func TestReactorHoldsWhenAligned(t *testing.T) {
	r := NewReactor(engine.NewContradictionEngine(0))
	r.React([]Tick{{Symbol: "BTCUSDT", Price: 100, Sentiment: 0.8}})
	// Rally with bullish sentiment: no contradiction to trade.
	signals := r.React([]Tick{{Symbol: "BTCUSDT", Price: 104, Sentiment: 0.8}})
	require.Len(t, signals, 1)
	assert.Equal(t, ActionHold, signals[0].Action)
}

func TestReactorHoldsOnWeakDivergence(t *testing.T) {
	r := NewReactor(engine.NewContradictionEngine(0))
	r.React([]Tick{{Symbol: "BTCUSDT", Price: 100, Sentiment: 0.05}})
	signals := r.React([]Tick{{Symbol: "BTCUSDT", Price: 99.9, Sentiment: 0.05}})
	require.Len(t, signals, 1)
	assert.Equal(t, ActionHold, signals[0].Action)
}

func TestSimulationModes(t *testing.T) {
	cases := []struct {
		mode   string
		cycles int
	}{
		{ModeQuick, 5},
		{ModeAccelerated, 15},
		{ModeFull, 96},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			report := runSimulation(t, tc.mode, 42)
			assert.Equal(t, tc.cycles, report.Cycles)
			assert.Equal(t, tc.mode, report.Mode)
		})
	}

	sim := newTestSimulation(t, 1)
	_, err := sim.Run(context.Background(), "warp")
	assert.Error(t, err)
}

func TestSimulationAccounting(t *testing.T) {
	report := runSimulation(t, ModeAccelerated, 1234)

	assert.Equal(t, 1.0, report.StartingCapital)
	assert.InDelta(t, report.FinalValue-report.StartingCapital, report.PnL, 1e-9)
	assert.InDelta(t, report.PnL/report.StartingCapital*100, report.ReturnPct, 1e-9)
	assert.GreaterOrEqual(t, report.MaxDrawdown, 0.0)

	// Every closed trade is a win, a loss, or flat.
	flat := 0
	sum := 0.0
	for _, tr := range report.Trades {
		if tr.PnL == 0 {
			flat++
		}
		sum += tr.PnL
		assert.NotEmpty(t, tr.Reason)
	}
	assert.Equal(t, len(report.Trades), report.Wins+report.Losses+flat)
	assert.InDelta(t, sum, report.PnL, 1e-9, "booked trade PnL must equal portfolio PnL")
	if len(report.Trades) > 0 {
		assert.InDelta(t, float64(report.Wins)/float64(len(report.Trades)), report.WinRate, 1e-9)
	}
}

func TestSimulationDeterministic(t *testing.T) {
	a := runSimulation(t, ModeQuick, 99)
	b := runSimulation(t, ModeQuick, 99)
	assert.Equal(t, a.FinalValue, b.FinalValue)
	assert.Equal(t, len(a.Trades), len(b.Trades))
}

func TestSimulationCancellation(t *testing.T) {
	sim := newTestSimulation(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Run(ctx, ModeQuick)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSimulationRejectsBadCapital(t *testing.T) {
	c, err := NewSyntheticConnector([]string{"BTCUSDT"}, 1)
	require.NoError(t, err)
	rm, err := NewRiskManager(0, 0, 0, 0)
	require.NoError(t, err)
	_, err = NewSimulation(c, NewReactor(engine.NewContradictionEngine(0)), rm, 0)
	assert.Error(t, err)
}

func TestSaveReport(t *testing.T) {
	report := runSimulation(t, ModeQuick, 7)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, SaveReport(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, report.Mode, loaded.Mode)
	assert.Equal(t, report.FinalValue, loaded.FinalValue)
}

func newTestSimulation(t *testing.T, seed int64) *Simulation {
	t.Helper()
	c, err := NewSyntheticConnector([]string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, seed)
	require.NoError(t, err)
	rm, err := NewRiskManager(0, 0, 0, 0)
	require.NoError(t, err)
	sim, err := NewSimulation(c, NewReactor(engine.NewContradictionEngine(0)), rm, 1.0)
	require.NoError(t, err)
	return sim
}

func runSimulation(t *testing.T, mode string, seed int64) *Report {
	t.Helper()
	sim := newTestSimulation(t, seed)
	report, err := sim.Run(context.Background(), mode)
	require.NoError(t, err)
	return report
}
