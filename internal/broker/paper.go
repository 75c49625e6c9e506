package broker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradebridge-go/internal/signal"
)

const contractSize = 100000 // units per standard lot

// Paper simulates a broker account in memory: orders fill instantly at the
// supplied price, profit is marked against the last seen price per symbol.
type Paper struct {
	name     string
	currency string

	mu        sync.Mutex
	balance   float64
	marks     map[string]float64
	positions map[string]*Position
}

// NewPaper builds a paper broker with the configured starting balance.
func NewPaper(cfg Config) *Paper {
	name := cfg.Name
	if name == "" {
		name = "PAPER"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	balance := cfg.StartingBalance
	if balance <= 0 {
		balance = 10000
	}
	return &Paper{
		name:      name,
		currency:  currency,
		balance:   balance,
		marks:     make(map[string]float64),
		positions: make(map[string]*Position),
	}
}

// Name returns the configured account name.
func (p *Paper) Name() string { return p.name }

// PlaceOrder opens a position for a directional signal.
func (p *Paper) PlaceOrder(sig signal.TradeSignal, price float64) OrderResult {
	if sig.Action != signal.ActionBuy && sig.Action != signal.ActionSell {
		return OrderResult{Message: fmt.Sprintf("cannot place order for action %s", sig.Action)}
	}
	if err := sig.Validate(); err != nil {
		return OrderResult{Message: err.Error()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if price <= 0 {
		// Fills without an explicit price use the last mark, or the midpoint
		// of the signal's levels when the symbol was never seen.
		if mark, ok := p.marks[sig.Symbol]; ok {
			price = mark
		} else if sig.StopLoss != nil && sig.TakeProfit != nil {
			price = (*sig.StopLoss + *sig.TakeProfit) / 2
		} else {
			return OrderResult{Message: fmt.Sprintf("no price available for %s", sig.Symbol)}
		}
	}
	p.marks[sig.Symbol] = price
	pos := &Position{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Type:       sig.Action,
		Lots:       sig.LotSize,
		OpenPrice:  price,
		MarkPrice:  price,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Comment:    sig.Comment,
		OpenedAt:   time.Now(),
	}
	p.positions[pos.ID] = pos
	return OrderResult{Success: true, OrderID: pos.ID}
}

// ClosePosition realizes profit on the identified position.
func (p *Paper) ClosePosition(id string, price float64) OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[id]
	if !ok {
		return OrderResult{Message: fmt.Sprintf("unknown position %s", id)}
	}
	if price <= 0 {
		price = p.markLocked(pos)
	}
	p.balance += positionProfit(pos, price)
	delete(p.positions, id)
	return OrderResult{Success: true, OrderID: id}
}

// CloseSymbol closes the oldest open position on the symbol; how a CLOSE
// signal resolves when the producer names no position.
func (p *Paper) CloseSymbol(symbol string, price float64) OrderResult {
	p.mu.Lock()
	var oldest *Position
	for _, pos := range p.positions {
		if pos.Symbol != symbol {
			continue
		}
		if oldest == nil || pos.OpenedAt.Before(oldest.OpenedAt) {
			oldest = pos
		}
	}
	p.mu.Unlock()
	if oldest == nil {
		return OrderResult{Message: fmt.Sprintf("no open position on %s", symbol)}
	}
	return p.ClosePosition(oldest.ID, price)
}

// ModifyPosition rewrites protective levels on an open position.
func (p *Paper) ModifyPosition(id string, stopLoss, takeProfit *float64) OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[id]
	if !ok {
		return OrderResult{Message: fmt.Sprintf("unknown position %s", id)}
	}
	if stopLoss != nil {
		pos.StopLoss = stopLoss
	}
	if takeProfit != nil {
		pos.TakeProfit = takeProfit
	}
	return OrderResult{Success: true, OrderID: id}
}

// ModifySymbol applies new levels to every open position on the symbol.
func (p *Paper) ModifySymbol(symbol string, stopLoss, takeProfit *float64) OrderResult {
	p.mu.Lock()
	var ids []string
	for id, pos := range p.positions {
		if pos.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()
	if len(ids) == 0 {
		return OrderResult{Message: fmt.Sprintf("no open position on %s", symbol)}
	}
	var last OrderResult
	for _, id := range ids {
		last = p.ModifyPosition(id, stopLoss, takeProfit)
	}
	return last
}

// SetPrice updates the mark for a symbol, used for equity and close prices.
func (p *Paper) SetPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	p.mu.Lock()
	p.marks[symbol] = price
	p.mu.Unlock()
}

// Positions lists open positions sorted by ID; empty symbol lists all.
func (p *Paper) Positions(symbol string) []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		snap := *pos
		snap.MarkPrice = p.markLocked(pos)
		snap.Profit = positionProfit(pos, snap.MarkPrice)
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AccountInfo marks open positions to the last seen prices.
func (p *Paper) AccountInfo() AccountInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	equity := p.balance
	for _, pos := range p.positions {
		equity += positionProfit(pos, p.markLocked(pos))
	}
	return AccountInfo{
		Balance:    p.balance,
		Equity:     equity,
		FreeMargin: equity,
		Currency:   p.currency,
	}
}

func (p *Paper) markLocked(pos *Position) float64 {
	if mark, ok := p.marks[pos.Symbol]; ok {
		return mark
	}
	return pos.OpenPrice
}

func positionProfit(pos *Position, price float64) float64 {
	diff := price - pos.OpenPrice
	if pos.Type == signal.ActionSell {
		diff = -diff
	}
	return diff * pos.Lots * contractSize
}

// Apply executes one incoming trade signal against the account, the way a
// terminal EA interprets the bridge protocol.
func (p *Paper) Apply(sig signal.TradeSignal, price float64) OrderResult {
	switch sig.Action {
	case signal.ActionBuy, signal.ActionSell:
		return p.PlaceOrder(sig, price)
	case signal.ActionClose:
		return p.CloseSymbol(sig.Symbol, price)
	case signal.ActionModify:
		return p.ModifySymbol(sig.Symbol, sig.StopLoss, sig.TakeProfit)
	default:
		return OrderResult{Message: fmt.Sprintf("unsupported action %s", sig.Action)}
	}
}
