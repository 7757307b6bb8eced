// Package metrics exposes Prometheus collectors for session handshakes and
// application traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledgerlink"

// Collectors groups the session metrics. A nil *Collectors records nothing,
// so components can take one optionally.
type Collectors struct {
	HandshakesStarted   *prometheus.CounterVec   // by role
	HandshakesCompleted *prometheus.CounterVec   // by role
	HandshakesFailed    *prometheus.CounterVec   // by role and reason
	HandshakeLatency    *prometheus.HistogramVec // by role, start to ready
	MessagesSent        prometheus.Counter
	MessagesReceived    prometheus.Counter
	MessagesRejected    *prometheus.CounterVec // by reason
	Undeliverable       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		HandshakesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handshake", Name: "started_total",
			Help: "Negotiations started.",
		}, []string{"role"}),
		HandshakesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handshake", Name: "completed_total",
			Help: "Negotiations that produced a usable session.",
		}, []string{"role"}),
		HandshakesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handshake", Name: "failed_total",
			Help: "Negotiations destroyed by an error.",
		}, []string{"role", "reason"}),
		HandshakeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "handshake", Name: "duration_seconds",
			Help:    "Time from negotiation start to a usable session.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"role"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "sent_total",
			Help: "Application payloads sealed onto a session.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "received_total",
			Help: "Application payloads authenticated and delivered.",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "rejected_total",
			Help: "Inbound data messages dropped.",
		}, []string{"reason"}),
		Undeliverable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messages", Name: "undeliverable_total",
			Help: "Queued payloads dropped because their session failed.",
		}),
	}
	reg.MustRegister(
		c.HandshakesStarted, c.HandshakesCompleted, c.HandshakesFailed, c.HandshakeLatency,
		c.MessagesSent, c.MessagesReceived, c.MessagesRejected, c.Undeliverable,
	)
	return c
}

func (c *Collectors) HandshakeStarted(role string) {
	if c != nil {
		c.HandshakesStarted.WithLabelValues(role).Inc()
	}
}

func (c *Collectors) HandshakeCompleted(role string, took time.Duration) {
	if c != nil {
		c.HandshakesCompleted.WithLabelValues(role).Inc()
		c.HandshakeLatency.WithLabelValues(role).Observe(took.Seconds())
	}
}

func (c *Collectors) HandshakeFailed(role, reason string) {
	if c != nil {
		c.HandshakesFailed.WithLabelValues(role, reason).Inc()
	}
}

func (c *Collectors) Sent() {
	if c != nil {
		c.MessagesSent.Inc()
	}
}

func (c *Collectors) Received() {
	if c != nil {
		c.MessagesReceived.Inc()
	}
}

func (c *Collectors) Rejected(reason string) {
	if c != nil {
		c.MessagesRejected.WithLabelValues(reason).Inc()
	}
}

func (c *Collectors) Undelivered(n int) {
	if c != nil && n > 0 {
		c.Undeliverable.Add(float64(n))
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
