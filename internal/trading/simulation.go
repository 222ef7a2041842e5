package trading

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kimera/internal/logging"
)

// Simulation modes and their cycle counts.
const (
	ModeFull        = "full"
	ModeAccelerated = "accelerated"
	ModeQuick       = "quick"
)

var modeCycles = map[string]int{
	ModeFull:        96,
	ModeAccelerated: 15,
	ModeQuick:       5,
}

// Position is an open holding.
type Position struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// Trade is one closed round trip.
type Trade struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	PnL        float64 `json:"pnl"`
	Reason     string  `json:"reason"`
	Cycle      int     `json:"cycle"`
}

// Report is the simulation outcome.
type Report struct {
	Mode            string        `json:"mode"`
	Cycles          int           `json:"cycles"`
	StartingCapital float64       `json:"starting_capital"`
	FinalValue      float64       `json:"final_value"`
	PnL             float64       `json:"pnl"`
	ReturnPct       float64       `json:"return_pct"`
	Trades          []Trade       `json:"trades"`
	Wins            int           `json:"wins"`
	Losses          int           `json:"losses"`
	WinRate         float64       `json:"win_rate"`
	MaxDrawdown     float64       `json:"max_drawdown"`
	Duration        time.Duration `json:"duration"`
}

// Simulation drives the connector / reactor / risk manager loop over a
// portfolio.
type Simulation struct {
	connector Connector
	reactor   *Reactor
	risk      *RiskManager

	cash      float64
	positions map[string]*Position
}

// NewSimulation builds a simulation with the given starting capital.
func NewSimulation(connector Connector, reactor *Reactor, risk *RiskManager, capital float64) (*Simulation, error) {
	if capital <= 0 {
		return nil, fmt.Errorf("starting capital must be positive, got %v", capital)
	}
	return &Simulation{
		connector: connector,
		reactor:   reactor,
		risk:      risk,
		cash:      capital,
		positions: make(map[string]*Position),
	}, nil
}

// Run executes the simulation in the given mode and returns the report.
func (s *Simulation) Run(ctx context.Context, mode string) (*Report, error) {
	cycles, ok := modeCycles[mode]
	if !ok {
		return nil, fmt.Errorf("unknown simulation mode %q", mode)
	}

	start := time.Now()
	report := &Report{
		Mode:            mode,
		Cycles:          cycles,
		StartingCapital: s.cash,
		Trades:          []Trade{},
	}
	peak := s.cash

	logging.Trading("Simulation start: mode=%s cycles=%d capital=%.4f", mode, cycles, s.cash)

	for cycle := 1; cycle <= cycles; cycle++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ticks, err := s.connector.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("market fetch failed at cycle %d: %w", cycle, err)
		}
		prices := make(map[string]float64, len(ticks))
		for _, t := range ticks {
			prices[t.Symbol] = t.Price
		}

		// Exits first so freed capital is available for this cycle's entries.
		for sym, pos := range s.positions {
			price, ok := prices[sym]
			if !ok {
				continue
			}
			if exit, reason := s.risk.ShouldExit(pos.EntryPrice, price); exit {
				report.Trades = append(report.Trades, s.close(pos, price, reason, cycle))
			}
		}

		for _, sig := range s.reactor.React(ticks) {
			price := prices[sig.Symbol]
			switch sig.Action {
			case ActionBuy:
				s.open(sig, price)
			case ActionSell:
				if pos, ok := s.positions[sig.Symbol]; ok {
					report.Trades = append(report.Trades, s.close(pos, price, "signal_sell", cycle))
				}
			}
		}

		value := s.value(prices)
		if value > peak {
			peak = value
		}
		if peak > 0 {
			dd := (peak - value) / peak
			if dd > report.MaxDrawdown {
				report.MaxDrawdown = dd
			}
		}
		logging.TradingDebug("Cycle %d/%d: value=%.4f positions=%d", cycle, cycles, value, len(s.positions))
	}

	// Mark remaining positions to market at the last seen price.
	finalTicks, err := s.connector.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	finalPrices := make(map[string]float64, len(finalTicks))
	for _, t := range finalTicks {
		finalPrices[t.Symbol] = t.Price
	}
	for sym, pos := range s.positions {
		if price, ok := finalPrices[sym]; ok {
			report.Trades = append(report.Trades, s.close(pos, price, "end_of_simulation", cycles))
		} else {
			delete(s.positions, sym)
		}
	}

	report.FinalValue = s.cash
	report.PnL = report.FinalValue - report.StartingCapital
	report.ReturnPct = report.PnL / report.StartingCapital * 100
	for _, t := range report.Trades {
		if t.PnL > 0 {
			report.Wins++
		} else if t.PnL < 0 {
			report.Losses++
		}
	}
	if len(report.Trades) > 0 {
		report.WinRate = float64(report.Wins) / float64(len(report.Trades))
	}
	report.Duration = time.Since(start)

	logging.Trading("Simulation done: final=%.4f pnl=%.4f trades=%d winrate=%.2f",
		report.FinalValue, report.PnL, len(report.Trades), report.WinRate)
	return report, nil
}

// open enters a position sized by the risk manager.
func (s *Simulation) open(sig Signal, price float64) {
	if price <= 0 {
		return
	}
	if _, exists := s.positions[sig.Symbol]; exists {
		return
	}
	size := s.risk.PositionSize(s.cash, sig.Confidence)
	if size > s.cash {
		size = s.cash
	}
	if size <= 0 {
		return
	}
	s.cash -= size
	s.positions[sig.Symbol] = &Position{
		Symbol:     sig.Symbol,
		Quantity:   size / price,
		EntryPrice: price,
	}
}

// close exits a position and returns the booked trade.
func (s *Simulation) close(pos *Position, price float64, reason string, cycle int) Trade {
	proceeds := pos.Quantity * price
	s.cash += proceeds
	delete(s.positions, pos.Symbol)
	return Trade{
		Symbol:     pos.Symbol,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Quantity:   pos.Quantity,
		PnL:        proceeds - pos.Quantity*pos.EntryPrice,
		Reason:     reason,
		Cycle:      cycle,
	}
}

// value marks the portfolio to market.
func (s *Simulation) value(prices map[string]float64) float64 {
	total := s.cash
	for sym, pos := range s.positions {
		if price, ok := prices[sym]; ok {
			total += pos.Quantity * price
		} else {
			total += pos.Quantity * pos.EntryPrice
		}
	}
	return total
}

// SaveReport writes the report as indented JSON.
func SaveReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
