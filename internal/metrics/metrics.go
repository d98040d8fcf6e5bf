package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route", "method"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Checkout counts checkout attempts by entry point and outcome.
type Checkout struct {
	Outcomes  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by entry point and outcome.",
	}, []string{"entry", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "duration_ms",
		Help:      "Checkout latency in milliseconds, transaction included.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"entry"})

	reg.MustRegister(outcomes, latency)
	return &Checkout{Outcomes: outcomes, LatencyMS: latency}
}

// Observe is safe on a nil receiver.
func (c *Checkout) Observe(entry, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Outcomes.WithLabelValues(entry, outcome).Inc()
	c.LatencyMS.WithLabelValues(entry).Observe(float64(d.Milliseconds()))
}

// Outbox counts relayed events.
type Outbox struct {
	Published *prometheus.CounterVec
	Failures  prometheus.Counter
}

func NewOutbox(reg prometheus.Registerer) *Outbox {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events published to the broker.",
	}, []string{"topic"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_failures_total",
		Help:      "Failed outbox publish batches.",
	})
	reg.MustRegister(published, failures)
	return &Outbox{Published: published, Failures: failures}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
