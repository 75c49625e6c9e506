package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"tradebridge-go/internal/signal"
)

// TrendFollower advises in the direction of price momentum once the move over
// a lookback window clears a threshold alongside minimum traded volume.
type TrendFollower struct {
	threshold float64
	window    time.Duration
	minVolume float64

	mu     sync.Mutex
	series map[string]*tickWindow
}

// NewTrendFollower builds a trend strategy from percent-change and volume
// filters; non-positive arguments fall back to defaults.
func NewTrendFollower(threshold float64, windowSecs int, minVolumeUSD float64) *TrendFollower {
	if threshold <= 0 {
		threshold = 0.005
	}
	if windowSecs <= 0 {
		windowSecs = 180
	}
	return &TrendFollower{
		threshold: threshold,
		window:    time.Duration(windowSecs) * time.Second,
		minVolume: math.Max(0, minVolumeUSD),
		series:    make(map[string]*tickWindow),
	}
}

// Name returns the identifier used in logs and signal comments.
func (t *TrendFollower) Name() string { return "TrendFollower" }

// OnTick evaluates momentum and volume to decide whether to advise a trade.
func (t *TrendFollower) OnTick(tk signal.Tick) *signal.Advice {
	if tk.Symbol == "" || tk.Price <= 0 {
		return nil
	}

	t.mu.Lock()
	w := t.series[tk.Symbol]
	if w == nil {
		w = &tickWindow{}
		t.series[tk.Symbol] = w
	}
	w.append(tk, t.window)
	oldest, latest := w.bounds()
	notional := w.notional()
	t.mu.Unlock()

	if oldest.Price <= 0 {
		return nil
	}
	change := (latest.Price - oldest.Price) / oldest.Price
	if math.Abs(change) < t.threshold {
		return nil
	}
	if t.minVolume > 0 && notional < t.minVolume {
		return nil
	}

	// Confidence scales with how far past the threshold the move is,
	// saturating at 3x.
	score := change / (3 * t.threshold)
	reason := fmt.Sprintf("move %.3f%% over %s, volume %.0f", change*100, t.window, notional)
	return adviceFromScore(tk.Symbol, score, reason, tk)
}

type tickWindow struct {
	ticks []signal.Tick
}

func (w *tickWindow) append(tk signal.Tick, window time.Duration) {
	w.ticks = append(w.ticks, tk)
	cutoff := tk.Ts.Add(-window)
	idx := 0
	for i, existing := range w.ticks {
		if existing.Ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(w.ticks) {
		w.ticks = w.ticks[idx:]
	}
}

func (w *tickWindow) bounds() (signal.Tick, signal.Tick) {
	if len(w.ticks) == 0 {
		return signal.Tick{}, signal.Tick{}
	}
	return w.ticks[0], w.ticks[len(w.ticks)-1]
}

func (w *tickWindow) notional() float64 {
	var total float64
	for _, tk := range w.ticks {
		total += math.Abs(tk.Price * tk.Size)
	}
	return total
}
