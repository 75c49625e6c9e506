package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/signal"
)

func TestNewNormalizesSymbols(t *testing.T) {
	f := New("", []string{" eurusd", "GBPUSD", "EURUSD", ""}, zerolog.Nop())
	got := f.Symbols()
	if len(got) != 2 || got[0] != "EURUSD" || got[1] != "GBPUSD" {
		t.Fatalf("unexpected symbols: %+v", got)
	}
}

func TestStubFeedEmitsTicksForEachSymbol(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f := New(ProviderStub, []string{"EURUSD", "GBPUSD"}, zerolog.Nop(), WithStubInterval(10*time.Millisecond))
	ticks := make(chan signal.Tick, 16)
	go func() { _ = f.Run(ctx, ticks) }()

	seen := map[string]int{}
	for len(seen) < 2 {
		select {
		case tk := <-ticks:
			if tk.Price <= 0 || tk.Size <= 0 {
				t.Fatalf("bad tick: %+v", tk)
			}
			seen[tk.Symbol]++
		case <-ctx.Done():
			t.Fatalf("timed out waiting for ticks, saw %v", seen)
		}
	}
}

func TestStubFeedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := New(ProviderStub, []string{"EURUSD"}, zerolog.Nop(), WithStubInterval(5*time.Millisecond))
	ticks := make(chan signal.Tick) // unbuffered, forces the feed to block

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, ticks) }()
	<-ticks
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("feed did not stop after cancel")
	}
}

func TestBinanceFeedRequiresSymbols(t *testing.T) {
	f := New(ProviderBinance, nil, zerolog.Nop())
	err := f.Run(context.Background(), make(chan signal.Tick))
	if err == nil {
		t.Fatalf("expected error for empty symbol set")
	}
}
