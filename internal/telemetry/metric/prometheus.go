// Package metric provides Prometheus metrics for tokgate.
//
// ServerMetrics counts connections, streams, datagrams, logins, session
// verifications, requests and upload bytes. Every recorder method is
// nil-safe, so components run unchanged when metrics are disabled.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokgate"

// Result label values.
const (
	ResultOK          = "ok"
	ResultFailed      = "failed"
	ResultRateLimited = "rate_limited"
	ResultMalformed   = "malformed"
	ResultError       = "error"
	ResultFallback    = "fallback"
)

// Stream kind label values.
const (
	StreamBidi = "bidi"
	StreamUni  = "uni"
)

// ServerMetrics holds the protocol metrics.
type ServerMetrics struct {
	ConnectionsActive  prometheus.Gauge
	ConnectionsTotal   *prometheus.CounterVec
	StreamsTotal       *prometheus.CounterVec
	DatagramsTotal     prometheus.Counter
	LoginsTotal        *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
	RequestsTotal      *prometheus.CounterVec
	UploadBytesTotal   prometheus.Counter
	ConnectionDuration prometheus.Histogram
}

// NewServerMetrics creates the metrics and registers them with reg.
// If reg is nil, metrics are created but not registered.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Current number of open connections",
		}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections closed, by outcome",
		}, []string{"result"}),
		StreamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Streams accepted, by kind",
		}, []string{"kind"}),
		DatagramsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Datagrams received",
		}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts, by outcome",
		}, []string{"result"}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_verifications_total",
			Help:      "Session verifications, by outcome",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "GET requests handled, by outcome",
		}, []string{"result"}),
		UploadBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_bytes_total",
			Help:      "Bytes received on unidirectional upload streams",
		}),
		ConnectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of connections in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43 minutes
		}),
	}

	if reg != nil {
		Register(reg,
			m.ConnectionsActive,
			m.ConnectionsTotal,
			m.StreamsTotal,
			m.DatagramsTotal,
			m.LoginsTotal,
			m.VerificationsTotal,
			m.RequestsTotal,
			m.UploadBytesTotal,
			m.ConnectionDuration,
		)
	}

	return m
}

// Register registers collectors with reg, ignoring collectors that are
// already registered. Any other registration failure panics.
func Register(reg prometheus.Registerer, collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// ConnOpened records a newly accepted connection.
func (m *ServerMetrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

// ConnClosed records the end of a connection.
func (m *ServerMetrics) ConnClosed(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
	m.ConnectionsTotal.WithLabelValues(result).Inc()
	m.ConnectionDuration.Observe(seconds)
}

// Stream records an accepted stream of the given kind.
func (m *ServerMetrics) Stream(kind string) {
	if m == nil {
		return
	}
	m.StreamsTotal.WithLabelValues(kind).Inc()
}

// Datagram records a received datagram.
func (m *ServerMetrics) Datagram() {
	if m == nil {
		return
	}
	m.DatagramsTotal.Inc()
}

// Login records a login attempt.
func (m *ServerMetrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// Verification records a session verification.
func (m *ServerMetrics) Verification(result string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

// Request records a handled GET request.
func (m *ServerMetrics) Request(result string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(result).Inc()
}

// Upload records bytes received on an upload stream.
func (m *ServerMetrics) Upload(n int) {
	if m == nil {
		return
	}
	m.UploadBytesTotal.Add(float64(n))
}

// Handler returns the /metrics HTTP handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
