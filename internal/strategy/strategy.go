// Package strategy turns market ticks into directional advice. Strategies
// stay ignorant of sizing and delivery; risk assessment converts their output
// into trade signals.
package strategy

import (
	"strings"

	"tradebridge-go/internal/signal"
)

// Strategy defines behaviour shared by strategy implementations.
type Strategy interface {
	// OnTick consumes one tick and returns advice, or nil when the strategy
	// has no opinion yet.
	OnTick(t signal.Tick) *signal.Advice
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Threshold    float64
	WindowSecs   int
	MinVolumeUSD float64
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "flow", "flow_imbalance":
		return NewFlowImbalance(params.Threshold, params.WindowSecs)
	default:
		return NewTrendFollower(params.Threshold, params.WindowSecs, params.MinVolumeUSD)
	}
}

func adviceFromScore(symbol string, score float64, reason string, t signal.Tick) *signal.Advice {
	action := signal.ActionBuy
	if score < 0 {
		action = signal.ActionSell
		score = -score
	}
	if score > 1 {
		score = 1
	}
	return &signal.Advice{
		Symbol:     symbol,
		Action:     action,
		Confidence: score,
		Reason:     reason,
		Ts:         t.Ts,
	}
}
