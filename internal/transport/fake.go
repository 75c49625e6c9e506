package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Handler computes a fake response for a recorded request payload.
type Handler func(payload []byte) ([]byte, error)

// Fake is an in-memory Client for tests. Responses come from a scripted
// handler, and an optional fault-injection rate makes individual requests
// fail deterministically given a seeded random source.
type Fake struct {
	mu        sync.Mutex
	connected bool
	handler   Handler

	connectErr error
	failRate   float64
	rng        *rand.Rand

	requests [][]byte
}

// FakeOption configures Fake construction.
type FakeOption func(*Fake)

// WithConnectError makes every Connect attempt fail with err.
func WithConnectError(err error) FakeOption {
	return func(f *Fake) { f.connectErr = err }
}

// WithFailureRate injects ErrTimeout on roughly rate of requests, driven by a
// seeded source so tests stay deterministic.
func WithFailureRate(rate float64, seed int64) FakeOption {
	return func(f *Fake) {
		f.failRate = rate
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// NewFake builds a fake client answering requests with handler.
func NewFake(handler Handler, opts ...FakeOption) *Fake {
	f := &Fake{handler: handler}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Connect succeeds unless a connect error was scripted.
func (f *Fake) Connect(host string, port int, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

// Request records the payload and either injects a fault or delegates to the
// scripted handler. Injected timeouts drop the connection, matching the real
// transport's contract.
func (f *Fake) Request(payload []byte, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, ErrClosed
	}
	f.requests = append(f.requests, append([]byte(nil), payload...))
	if f.rng != nil && f.rng.Float64() < f.failRate {
		f.connected = false
		return nil, ErrTimeout
	}
	resp, err := f.handler(payload)
	if err != nil {
		f.connected = false
		return nil, err
	}
	return resp, nil
}

// Close marks the fake disconnected; always succeeds.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// Requests returns a copy of every payload seen so far.
func (f *Fake) Requests() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.requests))
	copy(out, f.requests)
	return out
}

// Connected reports whether the fake currently holds a "connection".
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
