// Package metric holds the prometheus collectors of the console.
// All helper methods are safe on a nil *Metrics so components can run unobserved.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "camview"

type Metrics struct {
	SignalingPublished *prometheus.CounterVec
	SignalingDropped   *prometheus.CounterVec
	Retries            *prometheus.CounterVec
	Failures           *prometheus.CounterVec
	NegotiationErrors  *prometheus.CounterVec
	SessionState       *prometheus.GaugeVec
	StillFrames        *prometheus.CounterVec
	RTPPackets         *prometheus.CounterVec
	TransportState     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		SignalingPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signaling",
				Name:      "published_total",
				Help:      "Signaling messages published per device and method",
			},
			[]string{"device", "method"},
		),
		SignalingDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signaling",
				Name:      "dropped_total",
				Help:      "Inbound signaling messages dropped without a state change",
			},
			[]string{"device", "reason"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "retries_total",
				Help:      "Automatic reconnect attempts scheduled after connectivity failures",
			},
			[]string{"device"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "failures_total",
				Help:      "Sessions that exhausted their retries",
			},
			[]string{"device"},
		),
		NegotiationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "negotiation_errors_total",
				Help:      "Offer/answer exchanges that failed locally",
			},
			[]string{"device"},
		),
		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "state",
				Help:      "1 for the current state of each device session, 0 otherwise",
			},
			[]string{"device", "state"},
		),
		StillFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "media",
				Name:      "still_frames_total",
				Help:      "Still frames received on the side-channel",
			},
			[]string{"device"},
		),
		RTPPackets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "media",
				Name:      "rtp_packets_total",
				Help:      "RTP packets read from remote tracks",
			},
			[]string{"device", "kind"},
		),
		TransportState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "connected",
				Help:      "1 while the device broker connection is up",
			},
			[]string{"device"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.SignalingPublished,
		m.SignalingDropped,
		m.Retries,
		m.Failures,
		m.NegotiationErrors,
		m.SessionState,
		m.StillFrames,
		m.RTPPackets,
		m.TransportState,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Published(device, method string) {
	if m == nil {
		return
	}
	m.SignalingPublished.WithLabelValues(device, method).Inc()
}

func (m *Metrics) Dropped(device, reason string) {
	if m == nil {
		return
	}
	m.SignalingDropped.WithLabelValues(device, reason).Inc()
}

func (m *Metrics) Retry(device string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(device).Inc()
}

func (m *Metrics) Failure(device string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(device).Inc()
}

func (m *Metrics) NegotiationError(device string) {
	if m == nil {
		return
	}
	m.NegotiationErrors.WithLabelValues(device).Inc()
}

// State moves the device's state gauge from prev to next.
func (m *Metrics) State(device, prev, next string) {
	if m == nil || prev == next {
		return
	}
	if prev != "" {
		m.SessionState.WithLabelValues(device, prev).Set(0)
	}
	m.SessionState.WithLabelValues(device, next).Set(1)
}

func (m *Metrics) StillFrame(device string) {
	if m == nil {
		return
	}
	m.StillFrames.WithLabelValues(device).Inc()
}

func (m *Metrics) RTPPacket(device, kind string) {
	if m == nil {
		return
	}
	m.RTPPackets.WithLabelValues(device, kind).Inc()
}

func (m *Metrics) Transport(device string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.TransportState.WithLabelValues(device).Set(v)
}

// Forget drops every series of a removed device.
func (m *Metrics) Forget(device string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"device": device}
	m.SignalingPublished.DeletePartialMatch(labels)
	m.SignalingDropped.DeletePartialMatch(labels)
	m.Retries.DeletePartialMatch(labels)
	m.Failures.DeletePartialMatch(labels)
	m.NegotiationErrors.DeletePartialMatch(labels)
	m.SessionState.DeletePartialMatch(labels)
	m.StillFrames.DeletePartialMatch(labels)
	m.RTPPackets.DeletePartialMatch(labels)
	m.TransportState.DeletePartialMatch(labels)
}
