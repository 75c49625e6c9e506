// Package transport owns the persistent connection between a bridge session
// and the signal producer. Requests are strictly paired with responses; no
// pipelining is permitted.
package transport

import (
	"errors"
	"time"
)

// Error taxonomy surfaced to callers. Every failure mode a session can
// observe maps onto one of these sentinels.
var (
	// ErrConnectionRefused means the endpoint was unreachable at connect time.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrTimeout means no response arrived within the bound. The connection
	// is unusable afterwards and must be rebuilt.
	ErrTimeout = errors.New("timed out")
	// ErrConnectionReset means the peer closed the connection mid-exchange.
	ErrConnectionReset = errors.New("connection reset")
	// ErrClosed means the client has no live connection.
	ErrClosed = errors.New("transport closed")
)

// Client abstracts the request/response socket so sessions can run against
// either a real TCP connection or an in-memory fake.
type Client interface {
	// Connect establishes the persistent connection, replacing any prior one.
	Connect(host string, port int, timeout time.Duration) error
	// Request sends one payload and waits for exactly one response line.
	Request(payload []byte, timeout time.Duration) ([]byte, error)
	// Close tears down the connection; safe to call repeatedly.
	Close() error
}
