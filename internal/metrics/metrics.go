// Package metrics exposes the hub's per-channel counters as Prometheus
// metrics (SPEC_FULL.md §11 domain stack), replacing the teacher's
// periodic SNMP-style counter dump with a pull-based /metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry implements worker.Recorder against a private Prometheus
// registry (never the global default, so multiple hubs or tests can
// coexist in one process).
type Registry struct {
	reg *prometheus.Registry

	framesRead      *prometheus.CounterVec
	framesWritten   *prometheus.CounterVec
	coalesceDrops   *prometheus.CounterVec
	idleTransitions *prometheus.CounterVec
	connected       *prometheus.GaugeVec
}

// NewRegistry constructs and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		framesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyshared_hub",
			Name:      "frames_read_total",
			Help:      "Inbound frames read per channel and series id.",
		}, []string{"channel", "series"}),
		framesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyshared_hub",
			Name:      "frames_written_total",
			Help:      "Outbound frames written per channel and series id.",
		}, []string{"channel", "series"}),
		coalesceDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyshared_hub",
			Name:      "coalesce_drops_total",
			Help:      "Frames superseded by a newer frame of the same kind within one drain cycle.",
		}, []string{"channel", "series"}),
		idleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pyshared_hub",
			Name:      "idle_transitions_total",
			Help:      "Connected/idle state transitions per channel.",
		}, []string{"channel", "state"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pyshared_hub",
			Name:      "channel_connected",
			Help:      "1 if the channel is currently connected, 0 if idle.",
		}, []string{"channel"}),
	}
	reg.MustRegister(r.framesRead, r.framesWritten, r.coalesceDrops, r.idleTransitions, r.connected)
	return r
}

func seriesLabel(seriesID uint16) string { return strconv.Itoa(int(seriesID)) }

// FrameRead implements worker.Recorder.
func (r *Registry) FrameRead(channel string, seriesID uint16) {
	r.framesRead.WithLabelValues(channel, seriesLabel(seriesID)).Inc()
}

// FrameWritten implements worker.Recorder.
func (r *Registry) FrameWritten(channel string, seriesID uint16) {
	r.framesWritten.WithLabelValues(channel, seriesLabel(seriesID)).Inc()
}

// CoalesceDrop implements worker.Recorder.
func (r *Registry) CoalesceDrop(channel string, seriesID uint16) {
	r.coalesceDrops.WithLabelValues(channel, seriesLabel(seriesID)).Inc()
}

// IdleTransition implements worker.Recorder.
func (r *Registry) IdleTransition(channel string, idle bool) {
	state := "connected"
	val := 1.0
	if idle {
		state = "idle"
		val = 0.0
	}
	r.idleTransitions.WithLabelValues(channel, state).Inc()
	r.connected.WithLabelValues(channel).Set(val)
}

// Handler returns the HTTP handler to mount at the hub's metrics
// endpoint (cmd/hub's --metrics_addr flag).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
