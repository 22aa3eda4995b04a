package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's session and command counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessions      prometheus.Counter
	activeSession prometheus.Gauge
	commands      *prometheus.CounterVec
	bytesSent     prometheus.Counter
	bytesReceived prometheus.Counter
	protocolErrs  *prometheus.CounterVec
}

// NewMetrics registers the rcmd collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Total number of accepted client sessions",
		}),
		activeSession: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "session_active",
			Help:      "1 while a client session is being served",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Commands handled, by command name and status",
		}, []string{"command", "status"}),
		bytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "payload_bytes_sent_total",
			Help:      "Bytes of response payload frames sent",
		}),
		bytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "command_bytes_received_total",
			Help:      "Bytes of command frames received",
		}),
		protocolErrs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rcmd",
			Subsystem: "server",
			Name:      "protocol_errors_total",
			Help:      "Sessions torn down by a protocol error",
		}, []string{"reason"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	m.activeSession.Set(1)
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSession.Set(0)
}

func (m *Metrics) RecordCommand(name string, ok bool) {
	if m == nil {
		return
	}
	status := "false"
	if ok {
		status = "true"
	}
	m.commands.WithLabelValues(name, status).Inc()
}

func (m *Metrics) RecordReceived(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) RecordSent(n int) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) RecordProtocolError(reason string) {
	if m == nil {
		return
	}
	m.protocolErrs.WithLabelValues(reason).Inc()
}
