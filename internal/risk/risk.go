// Package risk sizes strategy advice into executable trade signals and
// rejects what falls outside the configured guard rails.
package risk

import (
	"fmt"
	"math"

	"tradebridge-go/internal/signal"
)

// Limits encodes the hard caps on the size the producer may request.
type Limits struct {
	MaxLotSize          float64
	MaxNotionalPerTrade float64
}

// Allow reports whether a trade of the given notional is inside the cap.
func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerTrade <= 0 || notional <= l.MaxNotionalPerTrade
}

// Config tunes the assessor; zero values fall back to defaults.
type Config struct {
	MinConfidence   float64 // reject advice below this, default 0.6
	MaxRiskPerTrade float64 // percent of balance risked, default 1.0
	StopLossPips    float64 // default 20
	TakeProfitPips  float64 // default 40
	PipSize         float64 // default 0.0001
	Limits          Limits
}

// Assessor converts advice into sized, level-annotated trade signals.
type Assessor struct {
	cfg Config
}

const (
	defaultMinConfidence   = 0.6
	defaultMaxRiskPerTrade = 1.0
	defaultStopLossPips    = 20
	defaultTakeProfitPips  = 40
	defaultPipSize         = 0.0001
	minLot                 = 0.01
	pipValuePerLot         = 10 // approximate USD per pip per standard lot
	lotContractSize        = 100000
)

// New builds an assessor, applying defaults for unset knobs.
func New(cfg Config) Assessor {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.MaxRiskPerTrade <= 0 {
		cfg.MaxRiskPerTrade = defaultMaxRiskPerTrade
	}
	if cfg.StopLossPips <= 0 {
		cfg.StopLossPips = defaultStopLossPips
	}
	if cfg.TakeProfitPips <= 0 {
		cfg.TakeProfitPips = defaultTakeProfitPips
	}
	if cfg.PipSize <= 0 {
		cfg.PipSize = defaultPipSize
	}
	return Assessor{cfg: cfg}
}

// LotSize sizes a position so a stop-out loses at most the configured percent
// of balance, floored at the broker minimum and capped by limits.
func (a Assessor) LotSize(balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	riskAmount := balance * a.cfg.MaxRiskPerTrade / 100
	lot := riskAmount / (a.cfg.StopLossPips * pipValuePerLot)
	lot = math.Round(lot*100) / 100
	if lot < minLot {
		lot = minLot
	}
	if a.cfg.Limits.MaxLotSize > 0 && lot > a.cfg.Limits.MaxLotSize {
		lot = a.cfg.Limits.MaxLotSize
	}
	return lot
}

// Levels places stop loss and take profit around the entry price for the
// given direction.
func (a Assessor) Levels(action signal.Action, price float64) (stopLoss, takeProfit *float64) {
	slDist := a.cfg.StopLossPips * a.cfg.PipSize
	tpDist := a.cfg.TakeProfitPips * a.cfg.PipSize
	var sl, tp float64
	switch action {
	case signal.ActionBuy:
		sl, tp = price-slDist, price+tpDist
	case signal.ActionSell:
		sl, tp = price+slDist, price-tpDist
	default:
		return nil, nil
	}
	if sl <= 0 || tp <= 0 {
		return nil, nil
	}
	return &sl, &tp
}

// Assess turns advice into a ready-to-queue trade signal. The second return
// is false when the advice is rejected (low confidence, zero size, or the
// notional cap).
func (a Assessor) Assess(adv signal.Advice, price, balance float64, broker string) (signal.TradeSignal, bool) {
	if adv.Confidence < a.cfg.MinConfidence {
		return signal.TradeSignal{}, false
	}
	if adv.Action != signal.ActionBuy && adv.Action != signal.ActionSell {
		return signal.TradeSignal{}, false
	}
	lot := a.LotSize(balance)
	if lot <= 0 {
		return signal.TradeSignal{}, false
	}
	if !a.cfg.Limits.Allow(lot * lotContractSize * price) {
		return signal.TradeSignal{}, false
	}

	sig := signal.New(adv.Symbol, adv.Action, broker, lot)
	sig.StopLoss, sig.TakeProfit = a.Levels(adv.Action, price)
	sig.Comment = fmt.Sprintf("%s (confidence %.2f)", adv.Reason, adv.Confidence)
	return sig, true
}
