// Package wire encodes and decodes the line-oriented JSON protocol spoken
// between a bridge session and the signal producer. Each message is a single
// JSON object terminated by a newline; JSON string escaping makes the framing
// unambiguous for free-text fields.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradebridge-go/internal/signal"
)

// Kind names a request type understood by the producer.
type Kind string

const (
	// KindHeartbeat is a liveness probe with no payload beyond its kind.
	KindHeartbeat Kind = "HEARTBEAT"
	// KindGetSignals drains pending trade signals from the producer queue.
	KindGetSignals Kind = "GET_SIGNALS"
	// KindSendStatus reports terminal-side status back to the producer.
	KindSendStatus Kind = "SEND_STATUS"
	// KindBridgeStatus asks the producer for its own health snapshot.
	KindBridgeStatus Kind = "GET_BRIDGE_STATUS"
)

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// ErrMalformedPayload marks payloads that do not match the expected shape for
// their declared kind. Wrapped errors carry the offending detail.
var ErrMalformedPayload = errors.New("malformed payload")

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Request is a decoded client request. Count, Status, and Message are only
// meaningful for the kinds that require them.
type Request struct {
	Action  Kind   `json:"action"`
	Count   int    `json:"count,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// EncodeRequest renders a request as a single JSON line payload (without the
// trailing newline; framing is the transport's job).
func EncodeRequest(req Request) ([]byte, error) {
	if _, ok := knownKinds[req.Action]; !ok {
		return nil, fmt.Errorf("cannot encode unknown request kind %q", req.Action)
	}
	return json.Marshal(req)
}

var knownKinds = map[Kind]struct{}{
	KindHeartbeat:    {},
	KindGetSignals:   {},
	KindSendStatus:   {},
	KindBridgeStatus: {},
}

type rawRequest struct {
	Action  *string `json:"action"`
	Count   *int    `json:"count"`
	Status  *string `json:"status"`
	Message *string `json:"message"`
}

// DecodeRequest parses a request line, enforcing required fields for the
// declared kind while tolerating unknown extra fields.
func DecodeRequest(payload []byte) (Request, error) {
	var raw rawRequest
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Request{}, malformedf("invalid JSON: %v", err)
	}
	if raw.Action == nil {
		return Request{}, malformedf("missing action")
	}
	kind := Kind(*raw.Action)
	if _, ok := knownKinds[kind]; !ok {
		return Request{}, malformedf("unknown action %q", *raw.Action)
	}

	req := Request{Action: kind}
	if raw.Count != nil {
		req.Count = *raw.Count
	}
	if kind == KindSendStatus {
		if raw.Status == nil {
			return Request{}, malformedf("%s requires status", kind)
		}
		if raw.Message == nil {
			return Request{}, malformedf("%s requires message", kind)
		}
		req.Status = *raw.Status
		req.Message = *raw.Message
	}
	return req, nil
}

// Stats mirrors the producer-side counters exposed via GET_BRIDGE_STATUS.
type Stats struct {
	SignalsSent     uint64 `json:"signals_sent"`
	SignalsReceived uint64 `json:"signals_received"`
	Errors          uint64 `json:"errors"`
	Reconnections   uint64 `json:"reconnections"`
}

// Response is the decoded producer reply for a given request kind. Fields not
// relevant to the kind are left at their zero values.
type Response struct {
	Status    string
	Message   string
	Timestamp time.Time
	QueueSize int

	// GET_SIGNALS only.
	Signals []signal.TradeSignal

	// GET_BRIDGE_STATUS only.
	ConnectionStatus string
	Stats            Stats
	LastHeartbeat    time.Time
}

type rawSignal struct {
	ID         *string    `json:"signal_id"`
	Symbol     *string    `json:"symbol"`
	Action     *string    `json:"action"`
	Broker     *string    `json:"broker"`
	LotSize    *float64   `json:"lot_size"`
	StopLoss   *float64   `json:"stop_loss"`
	TakeProfit *float64   `json:"take_profit"`
	Comment    string     `json:"comment"`
	Ts         *time.Time `json:"timestamp"`
}

type rawResponse struct {
	Status           *string     `json:"status"`
	Message          string      `json:"message"`
	Timestamp        string      `json:"timestamp"`
	QueueSize        *int        `json:"queue_size"`
	Signals          []rawSignal `json:"signals"`
	ConnectionStatus *string     `json:"connection_status"`
	Stats            *Stats      `json:"stats"`
	LastHeartbeat    string      `json:"last_heartbeat"`
}

// DecodeResponse parses a response line against the request kind it answers.
// Missing required fields yield ErrMalformedPayload; unrecognized extra
// fields are ignored for forward compatibility.
func DecodeResponse(kind Kind, payload []byte) (Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Response{}, malformedf("invalid JSON: %v", err)
	}
	if raw.Status == nil {
		return Response{}, malformedf("missing status")
	}

	resp := Response{Status: *raw.Status, Message: raw.Message}
	if resp.Status != StatusOK && resp.Status != StatusError {
		return Response{}, malformedf("unknown status %q", resp.Status)
	}
	if raw.QueueSize != nil {
		resp.QueueSize = *raw.QueueSize
	}
	if raw.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
		if err != nil {
			return Response{}, malformedf("bad timestamp %q", raw.Timestamp)
		}
		resp.Timestamp = ts
	}
	if resp.Status == StatusError {
		// Error responses carry no kind-specific fields.
		return resp, nil
	}

	switch kind {
	case KindGetSignals:
		resp.Signals = make([]signal.TradeSignal, 0, len(raw.Signals))
		for i, rs := range raw.Signals {
			sig, err := decodeSignal(rs)
			if err != nil {
				return Response{}, fmt.Errorf("signal %d: %w", i, err)
			}
			resp.Signals = append(resp.Signals, sig)
		}
	case KindBridgeStatus:
		if raw.ConnectionStatus == nil {
			return Response{}, malformedf("%s requires connection_status", kind)
		}
		resp.ConnectionStatus = *raw.ConnectionStatus
		if raw.Stats != nil {
			resp.Stats = *raw.Stats
		}
		if raw.LastHeartbeat != "" {
			ts, err := time.Parse(time.RFC3339Nano, raw.LastHeartbeat)
			if err != nil {
				return Response{}, malformedf("bad last_heartbeat %q", raw.LastHeartbeat)
			}
			resp.LastHeartbeat = ts
		}
	}
	return resp, nil
}

func decodeSignal(raw rawSignal) (signal.TradeSignal, error) {
	if raw.ID == nil || *raw.ID == "" {
		return signal.TradeSignal{}, malformedf("missing signal_id")
	}
	if raw.Symbol == nil {
		return signal.TradeSignal{}, malformedf("missing symbol")
	}
	if raw.Action == nil {
		return signal.TradeSignal{}, malformedf("missing action")
	}
	if raw.Broker == nil {
		return signal.TradeSignal{}, malformedf("missing broker")
	}
	if raw.LotSize == nil {
		return signal.TradeSignal{}, malformedf("missing lot_size")
	}
	action, err := signal.ParseAction(*raw.Action)
	if err != nil {
		return signal.TradeSignal{}, malformedf("%v", err)
	}

	sig := signal.TradeSignal{
		ID:         *raw.ID,
		Symbol:     *raw.Symbol,
		Action:     action,
		Broker:     *raw.Broker,
		LotSize:    *raw.LotSize,
		StopLoss:   raw.StopLoss,
		TakeProfit: raw.TakeProfit,
		Comment:    raw.Comment,
	}
	if raw.Ts != nil {
		sig.Ts = *raw.Ts
	}
	return sig, nil
}

// EncodeAck renders a bare OK response.
func EncodeAck() []byte {
	b, _ := json.Marshal(map[string]string{"status": StatusOK})
	return b
}

// EncodeError renders an ERROR response with the supplied message.
func EncodeError(message string) []byte {
	b, _ := json.Marshal(map[string]string{"status": StatusError, "message": message})
	return b
}

// EncodeHeartbeatResponse answers a HEARTBEAT with server time and queue depth.
func EncodeHeartbeatResponse(now time.Time, queueSize int) []byte {
	b, _ := json.Marshal(map[string]any{
		"status":     StatusOK,
		"timestamp":  now.UTC().Format(time.RFC3339Nano),
		"queue_size": queueSize,
	})
	return b
}

// EncodeSignalsResponse answers a GET_SIGNALS with the drained signals. A nil
// slice encodes as an empty sequence, never as null.
func EncodeSignalsResponse(signals []signal.TradeSignal, queueSize int) []byte {
	if signals == nil {
		signals = []signal.TradeSignal{}
	}
	b, _ := json.Marshal(map[string]any{
		"status":     StatusOK,
		"signals":    signals,
		"queue_size": queueSize,
	})
	return b
}

// EncodeBridgeStatusResponse answers a GET_BRIDGE_STATUS.
func EncodeBridgeStatusResponse(connectionStatus string, queueSize int, stats Stats, lastHeartbeat time.Time) []byte {
	payload := map[string]any{
		"status":            StatusOK,
		"connection_status": connectionStatus,
		"queue_size":        queueSize,
		"stats":             stats,
	}
	if !lastHeartbeat.IsZero() {
		payload["last_heartbeat"] = lastHeartbeat.UTC().Format(time.RFC3339Nano)
	}
	b, _ := json.Marshal(payload)
	return b
}
