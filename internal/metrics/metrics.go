// Package metrics collects and exposes Prometheus metrics for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records bot activity: upstream Calendly calls, handled chat
// events and completed OAuth connects.
type Collector struct {
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	events          *prometheus.CounterVec
	connects        prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookbot_upstream_requests_total",
			Help: "Calendly API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookbot_upstream_latency_seconds",
			Help:    "Calendly API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookbot_events_total",
			Help: "Inbound chat events by channel and kind.",
		}, []string{"channel", "kind"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookbot_oauth_connects_total",
			Help: "Completed Calendly OAuth connects.",
		}),
	}

	reg.MustRegister(
		c.upstreamCalls,
		c.upstreamLatency,
		c.events,
		c.connects,
	)

	return c
}

// ObserveUpstream records one Calendly API call.
func (c *Collector) ObserveUpstream(op, outcome string, d time.Duration) {
	c.upstreamCalls.WithLabelValues(op, outcome).Inc()
	c.upstreamLatency.Observe(d.Seconds())
}

// RecordEvent records one handled inbound chat event.
func (c *Collector) RecordEvent(channel, kind string) {
	c.events.WithLabelValues(channel, kind).Inc()
}

// RecordConnect records one completed OAuth connect.
func (c *Collector) RecordConnect() {
	c.connects.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
