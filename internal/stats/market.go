package stats

import (
	"fmt"
	"sort"

	"kimera/internal/geoid"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

// Instrument is one geoid viewed as a market instrument: activation mass as
// price, feature entropy as volatility.
type Instrument struct {
	GeoidID    string  `json:"geoid_id"`
	Price      float64 `json:"price"`
	Volatility float64 `json:"volatility"`
	Share      float64 `json:"market_share"`
}

// SemanticMarketReport treats the vault as a market of semantic instruments.
type SemanticMarketReport struct {
	Instruments           []Instrument `json:"instruments"`
	MarketCap             float64      `json:"market_cap"`
	MeanVolatility        float64      `json:"mean_volatility"`
	Concentration         float64      `json:"concentration"` // Herfindahl index over activation shares
	ContradictionPressure float64      `json:"contradiction_pressure"`
}

// AnalyzeSemanticMarket builds the market view from active geoids and their
// scar history. Instruments are sorted by price, largest first.
func AnalyzeSemanticMarket(geoids []*geoid.State, scars []*vault.Scar) (*SemanticMarketReport, error) {
	if len(geoids) == 0 {
		return nil, fmt.Errorf("semantic market needs at least one geoid")
	}

	report := &SemanticMarketReport{}
	for _, g := range geoids {
		inst := Instrument{
			GeoidID:    g.GeoidID,
			Price:      g.ActivationSum(),
			Volatility: g.CalculateEntropy(),
		}
		report.MarketCap += inst.Price
		report.MeanVolatility += inst.Volatility
		report.Instruments = append(report.Instruments, inst)
	}
	report.MeanVolatility /= float64(len(geoids))

	if report.MarketCap > 0 {
		for i := range report.Instruments {
			share := report.Instruments[i].Price / report.MarketCap
			report.Instruments[i].Share = share
			report.Concentration += share * share
		}
	}
	sort.Slice(report.Instruments, func(i, j int) bool {
		return report.Instruments[i].Price > report.Instruments[j].Price
	})

	// Contradiction pressure: scar-referenced geoids per active geoid.
	touched := make(map[string]bool)
	for _, s := range scars {
		for _, id := range s.Geoids {
			touched[id] = true
		}
	}
	report.ContradictionPressure = float64(len(touched)) / float64(len(geoids))

	logging.Stats("Semantic market: %d instruments, cap=%.3f, concentration=%.3f",
		len(report.Instruments), report.MarketCap, report.Concentration)
	return report, nil
}
