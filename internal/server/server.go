// Package server exposes the producer's signal queue to trading terminals
// over the line-oriented bridge protocol.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/metrics"
	"tradebridge-go/internal/queue"
	"tradebridge-go/internal/wire"
)

// Terminal connection status values reported via GET_BRIDGE_STATUS, matching
// the producer-side view of the last connected terminal.
const (
	StatusListening    = "listening"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

const (
	defaultHeartbeatTimeout = 30 * time.Second
	heartbeatCheckInterval  = 5 * time.Second
	writeTimeout            = 5 * time.Second
	maxRequestLine          = 1 << 20
)

// Config bundles listener settings.
type Config struct {
	Host             string
	Port             int
	HeartbeatTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	return c
}

// Server accepts terminal connections and answers bridge requests against a
// shared signal queue. Multiple sequential terminal connections are expected
// (an EA restart reconnects); concurrent connections are tolerated because
// the queue is thread safe.
type Server struct {
	cfg Config
	q   *queue.Manager
	log zerolog.Logger

	mu            sync.Mutex
	ln            net.Listener
	stats         wire.Stats
	connState     string
	lastHeartbeat time.Time
	everConnected bool
}

// New builds a server over the supplied queue.
func New(cfg Config, q *queue.Manager, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg.withDefaults(),
		q:         q,
		log:       log.With().Str("component", "server").Logger(),
		connState: StatusDisconnected,
	}
}

// Addr returns the bound listener address, or nil before Run. Tests bind
// port 0 and read the ephemeral port back from here.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats returns a copy of the request counters.
func (s *Server) Stats() wire.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ConnState reports the producer's view of the terminal connection.
func (s *Server) ConnState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

// Run listens and serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.connState = StatusListening
	s.mu.Unlock()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("bridge server listening")

	go s.monitorHeartbeat(ctx)
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.noteAccept(conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					_ = conn.Close()
				case <-done:
				}
			}()
			s.handle(conn)
			close(done)
		}()
	}
}

func (s *Server) noteAccept(remote net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.everConnected {
		s.stats.Reconnections++
	}
	s.everConnected = true
	s.log.Info().Str("remote", remote.String()).Msg("terminal connected")
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxRequestLine)

	for sc.Scan() {
		resp := s.dispatch(sc.Bytes())
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(append(resp, '\n')); err != nil {
			s.log.Warn().Err(err).Msg("write response failed")
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Debug().Err(err).Msg("terminal connection closed")
	}
}

func (s *Server) dispatch(line []byte) []byte {
	req, err := wire.DecodeRequest(line)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		metrics.RequestErrorsTotal.Inc()
		s.log.Warn().Err(err).Msg("rejecting request")
		return wire.EncodeError(err.Error())
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Action)).Inc()

	switch req.Action {
	case wire.KindHeartbeat:
		s.touch()
		return wire.EncodeHeartbeatResponse(time.Now(), s.q.Size())

	case wire.KindGetSignals:
		signals := s.q.Drain(req.Count)
		s.mu.Lock()
		s.stats.SignalsSent += uint64(len(signals))
		s.mu.Unlock()
		metrics.SignalsDeliveredTotal.Add(float64(len(signals)))
		if len(signals) > 0 {
			s.log.Info().Int("count", len(signals)).Msg("delivering signals")
		}
		return wire.EncodeSignalsResponse(signals, s.q.Size())

	case wire.KindSendStatus:
		s.touch()
		s.mu.Lock()
		s.stats.SignalsReceived++
		s.mu.Unlock()
		s.log.Debug().Str("status", req.Status).Str("msg", req.Message).Msg("terminal status")
		return wire.EncodeAck()

	case wire.KindBridgeStatus:
		s.mu.Lock()
		state, stats, last := s.connState, s.stats, s.lastHeartbeat
		s.mu.Unlock()
		return wire.EncodeBridgeStatusResponse(state, s.q.Size(), stats, last)

	default:
		// DecodeRequest only admits known kinds; kept for safety.
		return wire.EncodeError(fmt.Sprintf("unknown action %q", req.Action))
	}
}

// touch records terminal liveness on any heartbeat-bearing request.
func (s *Server) touch() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.connState = StatusConnected
	s.mu.Unlock()
}

// monitorHeartbeat flags the terminal as disconnected once heartbeats stop.
func (s *Server) monitorHeartbeat(ctx context.Context) {
	interval := heartbeatCheckInterval
	if half := s.cfg.HeartbeatTimeout / 2; half < interval {
		interval = half
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.lastHeartbeat.IsZero() && s.connState == StatusConnected {
				if elapsed := time.Since(s.lastHeartbeat); elapsed > s.cfg.HeartbeatTimeout {
					s.connState = StatusDisconnected
					s.log.Warn().Dur("silence", elapsed).Msg("terminal heartbeat lost")
				}
			}
			s.mu.Unlock()
		}
	}
}
