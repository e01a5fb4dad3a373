// Package metrics exposes session and packet counters to Prometheus,
// filling the observability gap the original part5 package left to
// its embedder.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set groups every counter and gauge the server registers. A nil *Set
// method receiver is valid and turns every call into a no-op, so
// callers that skip metrics setup don't need nil checks everywhere.
type Set struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	PacketsSent prometheus.Counter
	PacketsRecv prometheus.Counter
	PacketsNak  prometheus.Counter

	PortsInUse prometheus.Gauge
}

// NewSet creates and registers the counter and gauge family on reg.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "verse", Subsystem: "session", Name: "active",
			Help: "Number of session slots currently occupied.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verse", Subsystem: "session", Name: "total",
			Help: "Total sessions accepted since start.",
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verse", Subsystem: "packet", Name: "sent_total",
			Help: "Datagrams and messages sent.",
		}),
		PacketsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verse", Subsystem: "packet", Name: "received_total",
			Help: "Datagrams and messages received.",
		}),
		PacketsNak: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verse", Subsystem: "packet", Name: "nak_total",
			Help: "NAK vectors received, triggering retransmission.",
		}),
		PortsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "verse", Subsystem: "port", Name: "in_use",
			Help: "Ephemeral UDP data-plane ports currently allocated.",
		}),
	}
	reg.MustRegister(s.SessionsActive, s.SessionsTotal, s.PacketsSent, s.PacketsRecv, s.PacketsNak, s.PortsInUse)
	return s
}

// SessionOpened records a session slot transitioning from free to in use.
func (s *Set) SessionOpened() {
	if s == nil {
		return
	}
	s.SessionsActive.Inc()
	s.SessionsTotal.Inc()
}

// SessionClosed records a session slot returning to free.
func (s *Set) SessionClosed() {
	if s == nil {
		return
	}
	s.SessionsActive.Dec()
}

// PacketSent records one outbound datagram or message.
func (s *Set) PacketSent() {
	if s != nil {
		s.PacketsSent.Inc()
	}
}

// PacketReceived records one inbound datagram or message.
func (s *Set) PacketReceived() {
	if s != nil {
		s.PacketsRecv.Inc()
	}
}

// NakReceived records one NAK vector triggering retransmission.
func (s *Set) NakReceived() {
	if s != nil {
		s.PacketsNak.Inc()
	}
}

// SetPortsInUse reports the current ephemeral port pool occupancy.
func (s *Set) SetPortsInUse(n int) {
	if s == nil {
		return
	}
	s.PortsInUse.Set(float64(n))
}
