// Package queue holds pending trade signals on the producer side until a
// terminal drains them over the bridge.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"tradebridge-go/internal/signal"
)

// Errors an Add call can report.
var (
	ErrDuplicateSignal = errors.New("duplicate signal")
	ErrQueueFull       = errors.New("queue is full")
)

const (
	defaultMaxQueue   = 1000
	defaultMaxHistory = 10000
)

// Manager is a bounded FIFO of validated trade signals with a bounded history
// of everything already delivered. Signal IDs are deduplicated across the
// manager's lifetime so a retried producer push cannot enqueue twice.
type Manager struct {
	mu         sync.Mutex
	queue      []signal.TradeSignal
	history    []signal.TradeSignal
	seen       map[string]struct{}
	maxQueue   int
	maxHistory int
}

// NewManager builds a manager; non-positive limits fall back to defaults.
func NewManager(maxQueue, maxHistory int) *Manager {
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueue
	}
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Manager{
		seen:       make(map[string]struct{}),
		maxQueue:   maxQueue,
		maxHistory: maxHistory,
	}
}

// Add validates and enqueues a signal.
func (m *Manager) Add(sig signal.TradeSignal) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[sig.ID]; dup {
		return ErrDuplicateSignal
	}
	if len(m.queue) >= m.maxQueue {
		return ErrQueueFull
	}
	m.queue = append(m.queue, sig)
	m.seen[sig.ID] = struct{}{}
	return nil
}

// Drain removes up to count signals in delivery order and archives them to
// history. count <= 0 drains everything.
func (m *Manager) Drain(count int) []signal.TradeSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.queue)
	if count > 0 && count < n {
		n = count
	}
	out := make([]signal.TradeSignal, n)
	copy(out, m.queue[:n])
	m.queue = m.queue[n:]

	m.history = append(m.history, out...)
	if excess := len(m.history) - m.maxHistory; excess > 0 {
		m.history = m.history[excess:]
	}
	return out
}

// Size reports how many signals are pending.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// History returns a copy of the most recent delivered signals, newest last.
// limit <= 0 returns everything retained.
func (m *Manager) History(limit int) []signal.TradeSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]signal.TradeSignal, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// SignalByID looks up a delivered signal in the retained history.
func (m *Manager) SignalByID(id string) (signal.TradeSignal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == id {
			return m.history[i], true
		}
	}
	return signal.TradeSignal{}, false
}

// Clear empties the pending queue without touching history or dedup state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
}
