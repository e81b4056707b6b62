// Package metrics provides Prometheus instrumentation for the Phoenix
// Channels client: socket/channel population gauges, reconnect and
// heartbeat counters, and call latency histograms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSockets tracks the current number of sockets in the Connected
	// state.
	ActiveSockets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phoenixclient_active_sockets",
		Help: "Current number of sockets in the connected state",
	})

	// ActiveChannels tracks the current number of channels in the joined
	// state, across all sockets.
	ActiveChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phoenixclient_active_channels",
		Help: "Current number of channels in the joined state",
	})

	// ReconnectsTotal counts transport reconnect attempts, labeled by
	// outcome: "success" or "failure".
	ReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "phoenixclient_reconnects_total",
		Help: "Total number of transport reconnect attempts",
	}, []string{"outcome"})

	// HeartbeatsTotal counts heartbeat pushes sent to the server.
	HeartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phoenixclient_heartbeats_total",
		Help: "Total number of heartbeat pushes sent",
	})

	// CallLatency records round-trip latency for call() requests that
	// received an ok reply; error replies are not observed.
	CallLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "phoenixclient_call_latency_seconds",
		Help:    "Round-trip latency of call() requests",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	// PendingCalls tracks the current number of in-flight call()/join()
	// requests awaiting a reply.
	PendingCalls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phoenixclient_pending_calls",
		Help: "Current number of in-flight requests awaiting a reply",
	})

	// FramesDroppedTotal counts frames dropped by the Channel Manager's
	// routing rules (unknown topic, stale join_ref, etc.), labeled by
	// reason.
	FramesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "phoenixclient_frames_dropped_total",
		Help: "Total number of inbound frames dropped by the routing rules",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ActiveSockets,
		ActiveChannels,
		ReconnectsTotal,
		HeartbeatsTotal,
		CallLatency,
		PendingCalls,
		FramesDroppedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler, for embedding in a
// host application's own mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
