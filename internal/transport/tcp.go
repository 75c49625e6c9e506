package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// maxLineSize bounds a single response line; anything larger is treated as a
// protocol violation and resets the connection.
const maxLineSize = 1 << 20

// TCP is the production Client backed by a single persistent TCP connection.
type TCP struct {
	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

// NewTCP returns a disconnected TCP client.
func NewTCP() *TCP { return &TCP{} }

// Connect dials the endpoint, dropping any previous connection first.
func (t *TCP) Connect(host string, port int, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return classify("connect "+addr, err)
	}
	t.conn = conn
	t.rd = bufio.NewReaderSize(conn, maxLineSize)
	return nil
}

// Request writes one newline-terminated payload and reads exactly one
// newline-terminated response. Any I/O failure tears the connection down so
// the caller cannot accidentally pair a late response with the next request.
func (t *TCP) Request(payload []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrClosed
	}

	if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		t.teardownLocked()
		return nil, classify("set deadline", err)
	}
	if _, err := t.conn.Write(append(payload, '\n')); err != nil {
		t.teardownLocked()
		return nil, classify("write", err)
	}
	line, err := t.rd.ReadBytes('\n')
	if err != nil {
		t.teardownLocked()
		return nil, classify("read", err)
	}
	_ = t.conn.SetDeadline(time.Time{})
	return bytes.TrimRight(line, "\r\n"), nil
}

// Close is idempotent and safe on an already-closed client.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
	return nil
}

func (t *TCP) teardownLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
		t.rd = nil
	}
}

func classify(op string, err error) error {
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%s: %w", op, ErrConnectionRefused)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%s: %w", op, ErrConnectionReset)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
