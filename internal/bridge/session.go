// Package bridge implements the terminal-side session over the signal
// producer's request/response protocol.
package bridge

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/metrics"
	"tradebridge-go/internal/signal"
	"tradebridge-go/internal/transport"
	"tradebridge-go/internal/wire"
)

// State names the lifecycle phase of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// Config carries everything a session needs at construction; there is no
// global configuration.
type Config struct {
	Host           string
	Port           int
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

const (
	defaultHost    = "127.0.0.1"
	defaultPort    = 5555
	defaultTimeout = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultTimeout
	}
	return c
}

// Session is the stateful bridge handle a trading terminal drives. It owns a
// single transport connection and must not be used from more than one
// goroutine without external synchronization.
type Session struct {
	cfg Config
	tr  transport.Client
	log zerolog.Logger

	state         State
	lastHeartbeat time.Time
	seen          map[string]struct{}
}

// NewSession builds a disconnected session over the supplied transport.
func NewSession(cfg Config, tr transport.Client, log zerolog.Logger) *Session {
	return &Session{
		cfg:   cfg.withDefaults(),
		tr:    tr,
		log:   log.With().Str("component", "bridge").Logger(),
		state: StateDisconnected,
		seen:  make(map[string]struct{}),
	}
}

// State reports the session's current lifecycle phase.
func (s *Session) State() State { return s.state }

// LastHeartbeatAt reports when the last liveness probe succeeded.
func (s *Session) LastHeartbeatAt() time.Time { return s.lastHeartbeat }

// Initialize connects and performs a heartbeat round trip. It never returns
// an error: an unreachable producer is a normal, checkable outcome. On any
// failure the session is left in StateFailed.
func (s *Session) Initialize() bool {
	s.state = StateConnecting
	if err := s.tr.Connect(s.cfg.Host, s.cfg.Port, s.cfg.DialTimeout); err != nil {
		s.log.Warn().Err(err).Str("host", s.cfg.Host).Int("port", s.cfg.Port).Msg("connect failed")
		s.state = StateFailed
		return false
	}

	resp, err := s.roundTrip(wire.Request{Action: wire.KindHeartbeat})
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake heartbeat failed")
		_ = s.tr.Close()
		s.state = StateFailed
		return false
	}
	if resp.Status != wire.StatusOK {
		s.log.Warn().Str("status", resp.Status).Str("msg", resp.Message).Msg("producer rejected handshake")
		_ = s.tr.Close()
		s.state = StateFailed
		return false
	}

	s.lastHeartbeat = time.Now()
	s.state = StateConnected
	metrics.SessionReconnectsTotal.Inc()
	s.log.Info().Str("host", s.cfg.Host).Int("port", s.cfg.Port).Msg("bridge connected")
	return true
}

// GetSignals drains pending signals from the producer. When the session is
// not connected it returns an empty result without touching the wire; the
// caller decides whether to re-Initialize. Transport failures drop the
// session to StateDisconnected and surface as the returned error. Malformed
// responses are logged and treated as "no data". Signals already seen in
// this session (re-delivered by a retried fetch) are discarded.
func (s *Session) GetSignals() ([]signal.TradeSignal, error) {
	if s.state != StateConnected {
		return nil, nil
	}

	resp, err := s.roundTrip(wire.Request{Action: wire.KindGetSignals})
	if err != nil {
		if errors.Is(err, wire.ErrMalformedPayload) {
			s.log.Warn().Err(err).Msg("discarding malformed signals response")
			return []signal.TradeSignal{}, nil
		}
		s.dropConnection(err)
		return nil, err
	}
	if resp.Status != wire.StatusOK {
		s.log.Warn().Str("msg", resp.Message).Msg("producer reported error for GET_SIGNALS")
		return []signal.TradeSignal{}, nil
	}

	fresh := make([]signal.TradeSignal, 0, len(resp.Signals))
	for _, sig := range resp.Signals {
		if _, dup := s.seen[sig.ID]; dup {
			metrics.DuplicateSignalsTotal.Inc()
			s.log.Debug().Str("signal_id", sig.ID).Msg("dropping duplicate delivery")
			continue
		}
		s.seen[sig.ID] = struct{}{}
		fresh = append(fresh, sig)
	}
	return fresh, nil
}

// SendStatus reports terminal status to the producer. Best effort: failures
// are logged and swallowed so telemetry can never stall trading logic.
func (s *Session) SendStatus(status, message string) {
	if s.state != StateConnected {
		return
	}
	resp, err := s.roundTrip(wire.Request{Action: wire.KindSendStatus, Status: status, Message: message})
	if err != nil {
		s.log.Warn().Err(err).Msg("send status failed")
		if !errors.Is(err, wire.ErrMalformedPayload) {
			s.dropConnection(err)
		}
		return
	}
	if resp.Status != wire.StatusOK {
		s.log.Warn().Str("msg", resp.Message).Msg("producer rejected status report")
	}
}

// SendHeartbeat probes producer liveness. Same best-effort contract as
// SendStatus; a failed probe drops the session to StateDisconnected so the
// caller notices before the next trading decision.
func (s *Session) SendHeartbeat() {
	if s.state != StateConnected {
		return
	}
	resp, err := s.roundTrip(wire.Request{Action: wire.KindHeartbeat})
	if err != nil {
		s.log.Warn().Err(err).Msg("heartbeat failed")
		if !errors.Is(err, wire.ErrMalformedPayload) {
			s.dropConnection(err)
		}
		return
	}
	if resp.Status == wire.StatusOK {
		s.lastHeartbeat = time.Now()
	}
}

// BridgeStatus fetches the producer's health snapshot.
func (s *Session) BridgeStatus() (wire.Response, error) {
	if s.state != StateConnected {
		return wire.Response{}, transport.ErrClosed
	}
	resp, err := s.roundTrip(wire.Request{Action: wire.KindBridgeStatus})
	if err != nil {
		if !errors.Is(err, wire.ErrMalformedPayload) {
			s.dropConnection(err)
		}
		return wire.Response{}, err
	}
	return resp, nil
}

// Close releases the transport and leaves the session disconnected. Safe to
// call any number of times.
func (s *Session) Close() {
	_ = s.tr.Close()
	s.state = StateDisconnected
}

func (s *Session) roundTrip(req wire.Request) (wire.Response, error) {
	payload, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Response{}, err
	}
	raw, err := s.tr.Request(payload, s.cfg.RequestTimeout)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.DecodeResponse(req.Action, raw)
}

func (s *Session) dropConnection(err error) {
	s.log.Warn().Err(err).Msg("connection lost")
	_ = s.tr.Close()
	s.state = StateDisconnected
}
