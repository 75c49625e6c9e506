package bridge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/signal"
	"tradebridge-go/internal/transport"
	"tradebridge-go/internal/wire"
)

// scriptedProducer answers requests like the real server, serving canned
// signal batches in order.
func scriptedProducer(batches ...[]signal.TradeSignal) transport.Handler {
	return func(payload []byte) ([]byte, error) {
		req, err := wire.DecodeRequest(payload)
		if err != nil {
			return wire.EncodeError(err.Error()), nil
		}
		switch req.Action {
		case wire.KindHeartbeat:
			return wire.EncodeHeartbeatResponse(time.Now(), 0), nil
		case wire.KindGetSignals:
			if len(batches) == 0 {
				return wire.EncodeSignalsResponse(nil, 0), nil
			}
			batch := batches[0]
			batches = batches[1:]
			return wire.EncodeSignalsResponse(batch, 0), nil
		case wire.KindSendStatus:
			return wire.EncodeAck(), nil
		default:
			return wire.EncodeBridgeStatusResponse("connected", 0, wire.Stats{}, time.Now()), nil
		}
	}
}

func newTestSession(tr transport.Client) *Session {
	return NewSession(Config{}, tr, zerolog.Nop())
}

func TestInitializeHappyPath(t *testing.T) {
	fake := transport.NewFake(scriptedProducer())
	sess := newTestSession(fake)

	if sess.State() != StateDisconnected {
		t.Fatalf("new session should be disconnected, got %s", sess.State())
	}
	if !sess.Initialize() {
		t.Fatalf("expected initialize to succeed")
	}
	if sess.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", sess.State())
	}
	if sess.LastHeartbeatAt().IsZero() {
		t.Fatalf("expected heartbeat timestamp to be set")
	}
}

func TestInitializeRefusedLeavesFailed(t *testing.T) {
	fake := transport.NewFake(scriptedProducer(), transport.WithConnectError(transport.ErrConnectionRefused))
	sess := newTestSession(fake)

	if sess.Initialize() {
		t.Fatalf("expected initialize to fail")
	}
	if sess.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", sess.State())
	}

	// Failed sessions may retry initialize.
	ok := transport.NewFake(scriptedProducer())
	sess = newTestSession(ok)
	if !sess.Initialize() {
		t.Fatalf("retry against healthy producer should succeed")
	}
}

func TestInitializeMalformedHandshakeFails(t *testing.T) {
	fake := transport.NewFake(func(payload []byte) ([]byte, error) {
		return []byte(`{"nonsense":true}`), nil
	})
	sess := newTestSession(fake)
	if sess.Initialize() {
		t.Fatalf("malformed handshake response must fail initialize")
	}
	if sess.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", sess.State())
	}
}

func TestGetSignalsDecodesBatch(t *testing.T) {
	s1 := signal.New("EURUSD", signal.ActionBuy, "EXNESS", 0.01)
	s1.ID = "S1"
	s2 := signal.New("GBPUSD", signal.ActionSell, "EXNESS", 0.02)
	s2.ID = "S2"

	fake := transport.NewFake(scriptedProducer([]signal.TradeSignal{s1, s2}, nil))
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	got, err := sess.GetSignals()
	if err != nil {
		t.Fatalf("GetSignals error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "S1" || got[1].ID != "S2" {
		t.Fatalf("unexpected signals: %+v", got)
	}

	// Producer marked them consumed; the immediate re-poll is empty.
	got, err = sess.GetSignals()
	if err != nil {
		t.Fatalf("second GetSignals error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty re-poll, got %+v", got)
	}
}

func TestGetSignalsDiscardsDuplicateDelivery(t *testing.T) {
	s1 := signal.New("EURUSD", signal.ActionBuy, "EXNESS", 0.01)
	s1.ID = "S1"
	s2 := signal.New("EURUSD", signal.ActionClose, "EXNESS", 0.01)
	s2.ID = "S2"

	// A retried fetch re-delivers S1 alongside the new S2.
	fake := transport.NewFake(scriptedProducer(
		[]signal.TradeSignal{s1},
		[]signal.TradeSignal{s1, s2},
	))
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	first, err := sess.GetSignals()
	if err != nil || len(first) != 1 {
		t.Fatalf("unexpected first batch: %+v err=%v", first, err)
	}
	second, err := sess.GetSignals()
	if err != nil {
		t.Fatalf("second GetSignals error: %v", err)
	}
	if len(second) != 1 || second[0].ID != "S2" {
		t.Fatalf("expected only the fresh signal, got %+v", second)
	}
}

func TestGetSignalsWhileDisconnectedIsEmpty(t *testing.T) {
	fake := transport.NewFake(scriptedProducer())
	sess := newTestSession(fake)

	got, err := sess.GetSignals()
	if err != nil {
		t.Fatalf("disconnected GetSignals must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if reqs := fake.Requests(); len(reqs) != 0 {
		t.Fatalf("no wire traffic expected while disconnected, saw %d", len(reqs))
	}
}

func TestGetSignalsTransportErrorDisconnects(t *testing.T) {
	calls := 0
	flaky := transport.NewFake(func(payload []byte) ([]byte, error) {
		calls++
		if calls == 1 {
			return wire.EncodeHeartbeatResponse(time.Now(), 0), nil
		}
		return nil, transport.ErrConnectionReset
	})
	sess := newTestSession(flaky)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	_, err := sess.GetSignals()
	if !errors.Is(err, transport.ErrConnectionReset) {
		t.Fatalf("expected ErrConnectionReset, got %v", err)
	}
	if sess.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", sess.State())
	}

	// Without re-initialize, subsequent polls stay local and empty.
	got, err := sess.GetSignals()
	if err != nil || len(got) != 0 {
		t.Fatalf("expected quiet empty poll, got %+v err=%v", got, err)
	}
}

func TestMalformedSignalsResponseIsNoData(t *testing.T) {
	calls := 0
	fake := transport.NewFake(func(payload []byte) ([]byte, error) {
		calls++
		if calls == 1 {
			return wire.EncodeHeartbeatResponse(time.Now(), 0), nil
		}
		// Record missing lot_size.
		return []byte(`{"status":"OK","signals":[{"signal_id":"S1","symbol":"EURUSD","action":"BUY","broker":"X"}]}`), nil
	})
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	got, err := sess.GetSignals()
	if err != nil {
		t.Fatalf("malformed payload must not propagate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no data, got %+v", got)
	}
	if sess.State() != StateConnected {
		t.Fatalf("malformed payload must not drop the connection, state=%s", sess.State())
	}
}

func TestSendStatusNeverPropagatesErrors(t *testing.T) {
	calls := 0
	fake := transport.NewFake(func(payload []byte) ([]byte, error) {
		calls++
		if calls == 1 {
			return wire.EncodeHeartbeatResponse(time.Now(), 0), nil
		}
		return nil, transport.ErrTimeout
	})
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	// Must not panic or return anything.
	sess.SendStatus("ERROR", "order rejected")
	if sess.State() != StateDisconnected {
		t.Fatalf("failed status send should drop connection, state=%s", sess.State())
	}

	// Still safe when disconnected.
	sess.SendStatus("OK", "noop")
	sess.SendHeartbeat()
}

func TestSendHeartbeatUpdatesLiveness(t *testing.T) {
	fake := transport.NewFake(scriptedProducer())
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}
	before := sess.LastHeartbeatAt()
	time.Sleep(5 * time.Millisecond)
	sess.SendHeartbeat()
	if !sess.LastHeartbeatAt().After(before) {
		t.Fatalf("expected heartbeat timestamp to advance")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	fake := transport.NewFake(scriptedProducer())
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	sess.Close()
	if sess.State() != StateDisconnected {
		t.Fatalf("expected disconnected after close, got %s", sess.State())
	}
	sess.Close()
	if sess.State() != StateDisconnected {
		t.Fatalf("second close must leave state disconnected, got %s", sess.State())
	}
}

func TestHeartbeatRequestShape(t *testing.T) {
	fake := transport.NewFake(scriptedProducer())
	sess := newTestSession(fake)
	if !sess.Initialize() {
		t.Fatalf("initialize failed")
	}

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected a single handshake request, got %d", len(reqs))
	}
	var decoded map[string]any
	if err := json.Unmarshal(reqs[0], &decoded); err != nil {
		t.Fatalf("handshake request is not JSON: %v", err)
	}
	if decoded["action"] != string(wire.KindHeartbeat) {
		t.Fatalf("unexpected handshake action: %v", decoded["action"])
	}
}
