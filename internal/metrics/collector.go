// Package pimeshmetrics provides the daemon's Prometheus metrics.
package pimeshmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "pimesh"
	subsystem = "daemon"
)

const (
	labelState  = "state"
	labelResult = "result"
)

// Collector holds all daemon Prometheus metrics (spec.md §11 "Metrics").
type Collector struct {
	// LocalSessions tracks the number of currently registered local sessions.
	LocalSessions prometheus.Gauge

	// Peers tracks the number of federation peers, labeled by connection state
	// (connecting, open, gaveUp).
	Peers *prometheus.GaugeVec

	// RelaysTotal counts completed relay requests, labeled by result
	// (ok, fail, timeout, ack).
	RelaysTotal *prometheus.CounterVec

	// RateLimitRejections counts relay requests rejected by the sliding
	// window rate limiter.
	RateLimitRejections prometheus.Counter

	// FrameSizeRejections counts frames rejected for exceeding the maximum
	// frame size.
	FrameSizeRejections prometheus.Counter
}

// NewCollector creates a Collector with every metric registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.LocalSessions,
		c.Peers,
		c.RelaysTotal,
		c.RateLimitRejections,
		c.FrameSizeRejections,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		LocalSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "local_sessions",
			Help:      "Number of currently registered local sessions.",
		}),

		Peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peers",
			Help:      "Number of federation peers, labeled by connection state.",
		}, []string{labelState}),

		RelaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relays_total",
			Help:      "Total relay requests, labeled by result.",
		}, []string{labelResult}),

		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limit_rejections_total",
			Help:      "Total relay requests rejected by the rate limiter.",
		}),

		FrameSizeRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_size_rejections_total",
			Help:      "Total frames rejected for exceeding the maximum frame size.",
		}),
	}
}

// SetLocalSessions sets the local session count gauge.
func (c *Collector) SetLocalSessions(n int) {
	c.LocalSessions.Set(float64(n))
}

// SetPeerCount sets the peer gauge for one connection state.
func (c *Collector) SetPeerCount(state string, n int) {
	c.Peers.WithLabelValues(state).Set(float64(n))
}

// RecordRelay increments the relay counter for one outcome
// ("ok", "fail", "timeout", "ack").
func (c *Collector) RecordRelay(result string) {
	c.RelaysTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitRejection increments the rate-limit rejection counter.
func (c *Collector) RecordRateLimitRejection() {
	c.RateLimitRejections.Inc()
}

// RecordFrameSizeRejection increments the frame-size rejection counter.
func (c *Collector) RecordFrameSizeRejection() {
	c.FrameSizeRejections.Inc()
}
