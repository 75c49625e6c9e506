// Package broker defines the terminal-side execution contract and a paper
// implementation used when no live account is wired.
package broker

import (
	"time"

	"tradebridge-go/internal/signal"
)

// Config identifies the account a terminal executes against.
type Config struct {
	Name            string
	Currency        string
	StartingBalance float64
}

// OrderResult reports one execution attempt.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Position describes one open position.
type Position struct {
	ID         string
	Symbol     string
	Type       signal.Action // BUY or SELL
	Lots       float64
	OpenPrice  float64
	MarkPrice  float64
	StopLoss   *float64
	TakeProfit *float64
	Profit     float64
	Comment    string
	OpenedAt   time.Time
}

// AccountInfo summarizes account health.
type AccountInfo struct {
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Currency   string
}

// Broker is the execution interface a terminal drives with incoming signals.
type Broker interface {
	Name() string
	// PlaceOrder opens a position for a BUY or SELL signal.
	PlaceOrder(sig signal.TradeSignal, price float64) OrderResult
	// ClosePosition closes the identified position at the given price.
	ClosePosition(id string, price float64) OrderResult
	// ModifyPosition rewrites stop loss / take profit on an open position.
	ModifyPosition(id string, stopLoss, takeProfit *float64) OrderResult
	// Positions lists open positions, optionally filtered by symbol.
	Positions(symbol string) []Position
	AccountInfo() AccountInfo
}
