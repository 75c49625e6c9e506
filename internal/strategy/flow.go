package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"tradebridge-go/internal/signal"
)

// FlowImbalance advises with the dominant aggressor side when buy and sell
// volume diverge strongly over a sliding window.
type FlowImbalance struct {
	threshold float64
	window    time.Duration

	mu     sync.Mutex
	series map[string]*tickWindow
}

// NewFlowImbalance builds a flow strategy; non-positive arguments fall back
// to defaults.
func NewFlowImbalance(threshold float64, windowSecs int) *FlowImbalance {
	if threshold <= 0 {
		threshold = 0.25
	}
	if windowSecs <= 0 {
		windowSecs = 60
	}
	return &FlowImbalance{
		threshold: threshold,
		window:    time.Duration(windowSecs) * time.Second,
		series:    make(map[string]*tickWindow),
	}
}

// Name returns the identifier used in logs and signal comments.
func (f *FlowImbalance) Name() string { return "FlowImbalance" }

// OnTick updates the per-symbol window and advises once imbalance clears the
// threshold.
func (f *FlowImbalance) OnTick(tk signal.Tick) *signal.Advice {
	if tk.Symbol == "" || tk.Price <= 0 {
		return nil
	}

	f.mu.Lock()
	w := f.series[tk.Symbol]
	if w == nil {
		w = &tickWindow{}
		f.series[tk.Symbol] = w
	}
	w.append(tk, f.window)
	imbalance := w.imbalance()
	f.mu.Unlock()

	if math.Abs(imbalance) < f.threshold {
		return nil
	}
	reason := fmt.Sprintf("flow imbalance %.2f over %s", imbalance, f.window)
	return adviceFromScore(tk.Symbol, imbalance, reason, tk)
}

// imbalance is (buy-sell)/(buy+sell) volume in [-1, 1].
func (w *tickWindow) imbalance() float64 {
	var buy, sell float64
	for _, tk := range w.ticks {
		vol := math.Abs(tk.Size)
		if tk.Side >= 0 {
			buy += vol
		} else {
			sell += vol
		}
	}
	total := buy + sell
	if total == 0 {
		return 0
	}
	return (buy - sell) / total
}
