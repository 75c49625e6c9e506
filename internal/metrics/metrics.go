package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bridge_requests_total", Help: "Bridge requests served by kind"},
		[]string{"action"},
	)
	RequestErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bridge_request_errors_total", Help: "Malformed or failed bridge requests"},
	)
	SignalsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_enqueued_total", Help: "Trade signals accepted into the producer queue"},
		[]string{"symbol"},
	)
	SignalsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signals_delivered_total", Help: "Trade signals handed to a terminal"},
	)
	DuplicateSignalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "duplicate_signals_total", Help: "Re-delivered signals discarded by the session"},
	)
	SessionReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "session_reconnects_total", Help: "Successful session initializations"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		RequestsTotal,
		RequestErrorsTotal,
		SignalsEnqueuedTotal,
		SignalsDeliveredTotal,
		DuplicateSignalsTotal,
		SessionReconnectsTotal,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
