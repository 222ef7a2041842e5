// Package trading implements the semantic trading simulation: a synthetic
// market feed, risk-managed portfolio, and a reactor that turns market
// contradictions into trade signals. Simulation only, no live orders.
package trading

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Tick is one market observation for a symbol.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Sentiment float64 `json:"sentiment"` // [-1, 1]
}

// Connector feeds market data into the simulation.
type Connector interface {
	// Fetch returns the current tick for every watched symbol and then
	// advances the market by one step.
	Fetch(ctx context.Context) ([]Tick, error)
	Watchlist() []string
}

// SyntheticConnector generates a seeded random walk with drifting sentiment.
// Deterministic for a given seed, which keeps simulations reproducible.
type SyntheticConnector struct {
	mu        sync.Mutex
	rng       *rand.Rand
	watchlist []string
	prices    map[string]float64
	sentiment map[string]float64
}

// NewSyntheticConnector seeds a market for the watchlist. Prices start in a
// symbol-dependent band so the portfolio is not degenerate.
func NewSyntheticConnector(watchlist []string, seed int64) (*SyntheticConnector, error) {
	if len(watchlist) == 0 {
		return nil, fmt.Errorf("watchlist must not be empty")
	}
	rng := rand.New(rand.NewSource(seed))
	c := &SyntheticConnector{
		rng:       rng,
		watchlist: append([]string(nil), watchlist...),
		prices:    make(map[string]float64, len(watchlist)),
		sentiment: make(map[string]float64, len(watchlist)),
	}
	for _, sym := range c.watchlist {
		c.prices[sym] = 10 + rng.Float64()*90
		c.sentiment[sym] = rng.Float64()*0.4 - 0.2
	}
	return c, nil
}

// Fetch returns current ticks and advances the walk.
func (c *SyntheticConnector) Fetch(ctx context.Context) ([]Tick, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ticks := make([]Tick, 0, len(c.watchlist))
	for _, sym := range c.watchlist {
		ticks = append(ticks, Tick{
			Symbol:    sym,
			Price:     c.prices[sym],
			Volume:    100 + c.rng.Float64()*900,
			Sentiment: c.sentiment[sym],
		})

		// Geometric step with mild mean reversion on sentiment.
		step := c.rng.NormFloat64() * 0.02
		c.prices[sym] *= math.Exp(step)
		c.sentiment[sym] = clampSentiment(c.sentiment[sym]*0.9 + c.rng.NormFloat64()*0.15)
	}
	return ticks, nil
}

// Watchlist returns the watched symbols.
func (c *SyntheticConnector) Watchlist() []string {
	return append([]string(nil), c.watchlist...)
}

func clampSentiment(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
