package trading

import (
	"math"

	"kimera/internal/engine"
	"kimera/internal/geoid"
)

// Signal actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Signal is the reactor's verdict for one symbol this cycle.
type Signal struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Tension    float64 `json:"tension"`
}

// Reactor detects price/sentiment contradictions and converts them into
// trade signals. Each symbol's price action and sentiment become two small
// geoids; the contradiction engine scores the tension between them.
type Reactor struct {
	contra *engine.ContradictionEngine
	prev   map[string]Tick
}

// NewReactor builds a reactor around the given contradiction engine.
func NewReactor(contra *engine.ContradictionEngine) *Reactor {
	return &Reactor{contra: contra, prev: make(map[string]Tick)}
}

// React produces one signal per tick. The first observation of a symbol is
// always a hold, since momentum needs a previous price.
func (r *Reactor) React(ticks []Tick) []Signal {
	signals := make([]Signal, 0, len(ticks))
	for _, tick := range ticks {
		prev, seen := r.prev[tick.Symbol]
		r.prev[tick.Symbol] = tick
		if !seen || prev.Price <= 0 {
			signals = append(signals, Signal{Symbol: tick.Symbol, Action: ActionHold})
			continue
		}

		momentum := (tick.Price - prev.Price) / prev.Price
		tension := r.tension(momentum, tick.Sentiment)

		sig := Signal{Symbol: tick.Symbol, Action: ActionHold, Tension: tension}
		if tension > r.contra.TensionThreshold {
			// A contradiction between the tape and the narrative is the
			// trade: follow sentiment against price.
			sig.Confidence = math.Min(1, tension)
			if tick.Sentiment > 0 && momentum < 0 {
				sig.Action = ActionBuy
			} else if tick.Sentiment < 0 && momentum > 0 {
				sig.Action = ActionSell
			} else {
				sig.Confidence = 0
			}
		}
		signals = append(signals, sig)
	}
	return signals
}

// tension scores the divergence between price action and sentiment with the
// engine's composite scoring over two synthetic geoids. Momentum is scaled
// up so a few percent of price movement saturates the direction embedding.
func (r *Reactor) tension(momentum, sentiment float64) float64 {
	priceGeoid := geoid.NewState("price", directionFeatures(momentum*25))
	priceGeoid.EmbeddingVector = directionEmbedding(momentum * 25)
	sentimentGeoid := geoid.NewState("sentiment", directionFeatures(sentiment))
	sentimentGeoid.EmbeddingVector = directionEmbedding(sentiment)
	t := r.contra.ScoreTension(priceGeoid, sentimentGeoid)
	return t.TensionScore
}

// directionEmbedding encodes a signed magnitude as a 2-d vector. The small
// constant component keeps weak moves from reading as full opposition.
func directionEmbedding(v float64) []float32 {
	clamped := math.Max(-1, math.Min(1, v))
	return []float32{float32(clamped), 0.1}
}

// directionFeatures maps a signed magnitude onto bullish/bearish features.
func directionFeatures(v float64) map[string]float64 {
	mag := math.Min(1, math.Abs(v))
	if v >= 0 {
		return map[string]float64{"bullish": 0.5 + mag/2, "bearish": 0.5 - mag/2}
	}
	return map[string]float64{"bullish": 0.5 - mag/2, "bearish": 0.5 + mag/2}
}
