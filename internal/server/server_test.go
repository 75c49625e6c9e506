package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradebridge-go/internal/queue"
	"tradebridge-go/internal/signal"
	"tradebridge-go/internal/transport"
	"tradebridge-go/internal/wire"
)

func startServer(t *testing.T, q *queue.Manager) (*Server, *transport.TCP) {
	t.Helper()
	srv := New(Config{Port: 0, HeartbeatTimeout: 100 * time.Millisecond}, q, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	addr := srv.Addr().(*net.TCPAddr)
	cli := transport.NewTCP()
	if err := cli.Connect(addr.IP.String(), addr.Port, time.Second); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return srv, cli
}

func roundTrip(t *testing.T, cli *transport.TCP, req wire.Request) wire.Response {
	t.Helper()
	payload, err := wire.EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	raw, err := cli.Request(payload, time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := wire.DecodeResponse(req.Action, raw)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHeartbeatReportsQueueDepth(t *testing.T) {
	q := queue.NewManager(0, 0)
	if err := q.Add(signal.New("EURUSD", signal.ActionBuy, "EXNESS", 0.01)); err != nil {
		t.Fatalf("add: %v", err)
	}
	srv, cli := startServer(t, q)

	resp := roundTrip(t, cli, wire.Request{Action: wire.KindHeartbeat})
	if resp.Status != wire.StatusOK || resp.QueueSize != 1 {
		t.Fatalf("unexpected heartbeat response: %+v", resp)
	}
	if resp.Timestamp.IsZero() {
		t.Fatalf("expected server timestamp")
	}
	if srv.ConnState() != StatusConnected {
		t.Fatalf("expected connected state after heartbeat, got %s", srv.ConnState())
	}
}

func TestGetSignalsDrainsQueue(t *testing.T) {
	q := queue.NewManager(0, 0)
	for _, id := range []string{"S1", "S2"} {
		sig := signal.New("EURUSD", signal.ActionBuy, "EXNESS", 0.01)
		sig.ID = id
		if err := q.Add(sig); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	srv, cli := startServer(t, q)

	resp := roundTrip(t, cli, wire.Request{Action: wire.KindGetSignals})
	if len(resp.Signals) != 2 || resp.Signals[0].ID != "S1" || resp.Signals[1].ID != "S2" {
		t.Fatalf("unexpected signals: %+v", resp.Signals)
	}
	if resp.QueueSize != 0 {
		t.Fatalf("queue should be drained, size=%d", resp.QueueSize)
	}

	resp = roundTrip(t, cli, wire.Request{Action: wire.KindGetSignals})
	if len(resp.Signals) != 0 {
		t.Fatalf("second poll must be empty, got %+v", resp.Signals)
	}
	if got := srv.Stats().SignalsSent; got != 2 {
		t.Fatalf("expected 2 signals counted, got %d", got)
	}
}

func TestGetSignalsHonorsCount(t *testing.T) {
	q := queue.NewManager(0, 0)
	for _, id := range []string{"S1", "S2", "S3"} {
		sig := signal.New("EURUSD", signal.ActionSell, "EXNESS", 0.01)
		sig.ID = id
		if err := q.Add(sig); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	_, cli := startServer(t, q)

	resp := roundTrip(t, cli, wire.Request{Action: wire.KindGetSignals, Count: 2})
	if len(resp.Signals) != 2 || resp.QueueSize != 1 {
		t.Fatalf("unexpected partial drain: %d signals, queue %d", len(resp.Signals), resp.QueueSize)
	}
}

func TestInvalidRequestGetsErrorResponse(t *testing.T) {
	srv, cli := startServer(t, queue.NewManager(0, 0))

	raw, err := cli.Request([]byte("this is not json"), time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := wire.DecodeResponse(wire.KindHeartbeat, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != wire.StatusError {
		t.Fatalf("expected ERROR response, got %+v", resp)
	}
	if srv.Stats().Errors != 1 {
		t.Fatalf("expected error counted, got %d", srv.Stats().Errors)
	}

	// The connection survives a bad request.
	good := roundTrip(t, cli, wire.Request{Action: wire.KindHeartbeat})
	if good.Status != wire.StatusOK {
		t.Fatalf("expected connection to survive bad request")
	}
}

func TestBridgeStatusSnapshot(t *testing.T) {
	srv, cli := startServer(t, queue.NewManager(0, 0))

	roundTrip(t, cli, wire.Request{Action: wire.KindHeartbeat})
	roundTrip(t, cli, wire.Request{Action: wire.KindSendStatus, Status: "OK", Message: "flat"})

	resp := roundTrip(t, cli, wire.Request{Action: wire.KindBridgeStatus})
	if resp.ConnectionStatus != StatusConnected {
		t.Fatalf("unexpected connection status: %s", resp.ConnectionStatus)
	}
	if resp.Stats.SignalsReceived != 1 {
		t.Fatalf("expected one status report counted, got %+v", resp.Stats)
	}
	if resp.LastHeartbeat.IsZero() {
		t.Fatalf("expected last heartbeat recorded")
	}
	_ = srv
}

func TestHeartbeatTimeoutFlagsDisconnect(t *testing.T) {
	srv, cli := startServer(t, queue.NewManager(0, 0))

	roundTrip(t, cli, wire.Request{Action: wire.KindHeartbeat})
	if srv.ConnState() != StatusConnected {
		t.Fatalf("expected connected, got %s", srv.ConnState())
	}

	// HeartbeatTimeout is 100ms here and the monitor ticks at half the
	// timeout, so silence flips the state quickly.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnState() != StatusDisconnected {
		if time.Now().After(deadline) {
			t.Fatalf("terminal silence was not flagged")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
