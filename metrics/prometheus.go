// Package metrics publishes command engine outcomes as Prometheus
// metrics via an observer function compatible with command.WithObserver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	command "github.com/JohnPlummer/jp-go-command"
)

// Collector wraps the Prometheus vectors this package publishes and
// exposes an observer func suitable for command.WithObserver.
type Collector struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	breakerState  *prometheus.GaugeVec
	cacheHits     *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics against reg.
// Pass prometheus.DefaultRegisterer to publish through the default
// handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "command",
			Name:      "requests_total",
			Help:      "Total command executions by command name and outcome kind.",
		}, []string{"command", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "command",
			Name:      "duration_seconds",
			Help:      "Command execution latency in seconds, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "command",
			Name:      "breaker_state",
			Help:      "Current breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"command"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "command",
			Name:      "cache_hits_total",
			Help:      "Total cache hits by command name.",
		}, []string{"command"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "command",
			Name:      "cache_requests_total",
			Help:      "Total observed executions by command name, counted for every execution whether or not it is cache-bound.",
		}, []string{"command"}),
	}

	reg.MustRegister(c.requests, c.duration, c.breakerState, c.cacheHits, c.cacheRequests)
	return c
}

// Observe implements the func(command.Event) shape expected by
// command.WithObserver.
func (c *Collector) Observe(ev command.Event) {
	c.requests.WithLabelValues(ev.Command, ev.Kind.String()).Inc()
	c.duration.WithLabelValues(ev.Command).Observe(ev.Duration.Seconds())
	c.breakerState.WithLabelValues(ev.Command).Set(float64(ev.BreakerState))

	if ev.CacheHit {
		c.cacheHits.WithLabelValues(ev.Command).Inc()
	}
	c.cacheRequests.WithLabelValues(ev.Command).Inc()
}
