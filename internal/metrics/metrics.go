// Package metrics exposes Prometheus counters describing the traffic between the
// client and the game server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dcrodman/noughts/internal/protocol"
)

const (
	namespace = "noughts"
	subsystem = "client"

	// unknownType replaces tags outside the protocol so that a misbehaving
	// server cannot blow up label cardinality.
	unknownType = "unknown"
)

// Metrics holds the client's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	garbledFrames  prometheus.Counter
	listenerStops  prometheus.Counter
}

// New registers the client collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Frames written to the server by type and outcome",
		}, []string{"type", "status"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Envelopes received from the server by type",
		}, []string{"type"}),

		garbledFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "garbled_frames_total",
			Help:      "Frames received from the server that could not be decoded",
		}),

		listenerStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "listener_stops_total",
			Help:      "Times the receive loop stopped because the connection was lost",
		}),
	}
}

func typeLabel(t protocol.Type) string {
	if !t.Known() {
		return unknownType
	}
	return string(t)
}

// FrameSent counts one attempted write of type t.
func (m *Metrics) FrameSent(t protocol.Type, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.framesSent.WithLabelValues(typeLabel(t), status).Inc()
}

func (m *Metrics) FrameReceived(t protocol.Type) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(typeLabel(t)).Inc()
}

func (m *Metrics) GarbledFrame() {
	if m == nil {
		return
	}
	m.garbledFrames.Inc()
}

func (m *Metrics) ListenerStopped() {
	if m == nil {
		return
	}
	m.listenerStops.Inc()
}
