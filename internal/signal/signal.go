// Package signal standardizes payloads shared between market data, strategy,
// and bridge layers.
package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action enumerates the trade instructions a producer may emit.
type Action string

const (
	// ActionBuy opens a long position.
	ActionBuy Action = "BUY"
	// ActionSell opens a short position.
	ActionSell Action = "SELL"
	// ActionClose closes an open position on the instrument.
	ActionClose Action = "CLOSE"
	// ActionModify adjusts stop loss / take profit on an open position.
	ActionModify Action = "MODIFY"
)

// ParseAction normalizes a wire-level action string into an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionBuy, ActionSell, ActionClose, ActionModify:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Tick models the essential pieces of market data consumed by strategies.
type Tick struct {
	Symbol string
	Price  float64
	Size   float64
	Side   int // +1 buy, -1 sell (aggressor)
	Ts     time.Time
}

// Advice is a strategy's directional opinion before risk sizing turns it into
// an actionable TradeSignal.
type Advice struct {
	Symbol     string
	Action     Action // BUY or SELL only
	Confidence float64
	Reason     string
	Ts         time.Time
}

// TradeSignal is one actionable trading instruction exchanged over the bridge.
type TradeSignal struct {
	ID         string    `json:"signal_id"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Broker     string    `json:"broker"`
	LotSize    float64   `json:"lot_size"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Comment    string    `json:"comment"`
	Ts         time.Time `json:"timestamp"`
}

// New mints a TradeSignal with a fresh unique ID and the current timestamp.
func New(symbol string, action Action, broker string, lotSize float64) TradeSignal {
	return TradeSignal{
		ID:      uuid.NewString(),
		Symbol:  symbol,
		Action:  action,
		Broker:  broker,
		LotSize: lotSize,
		Ts:      time.Now().UTC(),
	}
}

// Validate checks the invariants a signal must satisfy before it may be
// queued or executed.
func (s TradeSignal) Validate() error {
	if len(s.Symbol) < 3 {
		return errors.New("invalid symbol")
	}
	if _, err := ParseAction(string(s.Action)); err != nil {
		return err
	}
	if s.ID == "" {
		return errors.New("missing signal id")
	}
	if s.LotSize <= 0 {
		return errors.New("lot size must be positive")
	}
	if s.StopLoss != nil && *s.StopLoss <= 0 {
		return errors.New("stop loss must be positive")
	}
	if s.TakeProfit != nil && *s.TakeProfit <= 0 {
		return errors.New("take profit must be positive")
	}
	if s.StopLoss != nil && s.TakeProfit != nil {
		switch s.Action {
		case ActionBuy:
			if *s.StopLoss >= *s.TakeProfit {
				return errors.New("stop loss must be below take profit for BUY")
			}
		case ActionSell:
			if *s.StopLoss <= *s.TakeProfit {
				return errors.New("stop loss must be above take profit for SELL")
			}
		}
	}
	return nil
}
