package trading

import "fmt"

// Risk limits mirrored from the simulation defaults: tiny starting capital,
// tight risk per trade.
const (
	DefaultRiskPerTrade    = 0.05
	DefaultMaxPositionSize = 0.30
	DefaultStopLoss        = 0.02
	DefaultTakeProfit      = 0.06
)

// RiskManager sizes positions and decides exits.
type RiskManager struct {
	RiskPerTrade    float64
	MaxPositionSize float64
	StopLoss        float64
	TakeProfit      float64
}

// NewRiskManager validates and builds a risk manager. Zero values fall back
// to the defaults.
func NewRiskManager(riskPerTrade, maxPosition, stopLoss, takeProfit float64) (*RiskManager, error) {
	rm := &RiskManager{
		RiskPerTrade:    riskPerTrade,
		MaxPositionSize: maxPosition,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
	}
	if rm.RiskPerTrade == 0 {
		rm.RiskPerTrade = DefaultRiskPerTrade
	}
	if rm.MaxPositionSize == 0 {
		rm.MaxPositionSize = DefaultMaxPositionSize
	}
	if rm.StopLoss == 0 {
		rm.StopLoss = DefaultStopLoss
	}
	if rm.TakeProfit == 0 {
		rm.TakeProfit = DefaultTakeProfit
	}
	if rm.RiskPerTrade <= 0 || rm.RiskPerTrade > 1 {
		return nil, fmt.Errorf("risk per trade must be in (0,1], got %v", rm.RiskPerTrade)
	}
	if rm.MaxPositionSize <= 0 || rm.MaxPositionSize > 1 {
		return nil, fmt.Errorf("max position size must be in (0,1], got %v", rm.MaxPositionSize)
	}
	return rm, nil
}

// PositionSize returns the capital to commit to a new position: risk capital
// scaled by signal confidence, capped at the position limit.
func (rm *RiskManager) PositionSize(portfolioValue, confidence float64) float64 {
	if portfolioValue <= 0 || confidence <= 0 {
		return 0
	}
	if confidence > 1 {
		confidence = 1
	}
	size := portfolioValue * rm.RiskPerTrade * confidence / rm.StopLoss
	limit := portfolioValue * rm.MaxPositionSize
	if size > limit {
		size = limit
	}
	return size
}

// ShouldExit reports whether an open position hit its stop or target, and
// which.
func (rm *RiskManager) ShouldExit(entryPrice, currentPrice float64) (bool, string) {
	if entryPrice <= 0 {
		return false, ""
	}
	change := (currentPrice - entryPrice) / entryPrice
	switch {
	case change <= -rm.StopLoss:
		return true, "stop_loss"
	case change >= rm.TakeProfit:
		return true, "take_profit"
	}
	return false, ""
}
