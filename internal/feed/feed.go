// Package feed hosts market data sources that drive the producer's strategy.
package feed

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/metrics"
	"tradebridge-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests and
	// offline runs).
	ProviderStub = "stub"
	// ProviderBinance streams live trades from Binance public websockets.
	ProviderBinance = "binance"
)

const defaultStubInterval = 500 * time.Millisecond

// Feed is a pluggable tick source bound to a fixed symbol set.
type Feed struct {
	provider     string
	symbols      []string
	log          zerolog.Logger
	stubInterval time.Duration
}

// Option configures Feed construction.
type Option func(*Feed)

// WithStubInterval overrides the synthetic tick cadence.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubInterval = d
		}
	}
}

// New constructs a feed backed by the requested provider.
func New(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	f := &Feed{
		provider:     strings.ToLower(strings.TrimSpace(provider)),
		symbols:      normalizeSymbols(symbols),
		log:          log.With().Str("component", "feed").Logger(),
		stubInterval: defaultStubInterval,
	}
	if f.provider == "" {
		f.provider = ProviderStub
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func normalizeSymbols(symbols []string) []string {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			unique[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(unique))
	for sym := range unique {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Symbols returns the tracked symbol list.
func (f *Feed) Symbols() []string {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes ticks onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Tick) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// runStub walks each symbol's price along a slow sine wave so strategies see
// movement in both directions.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.Tick) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			step++
			phase := float64(step) / 20.0
			px := 1.1000 * (1 + 0.01*math.Sin(phase))
			side := 1
			if math.Cos(phase) < 0 {
				side = -1
			}
			for _, sym := range f.symbols {
				tick := signal.Tick{Symbol: sym, Price: px, Size: 1000, Side: side, Ts: ts}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(sym).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
