// Package metrics exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request and transaction metrics.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	txOutcomes   *prometheus.CounterVec
	rateLimited  prometheus.Counter
	swept        *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoapi_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		txOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_transactions_total",
			Help: "Finished store transactions by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_rate_limited_total",
			Help: "Requests rejected by the auth rate limiter.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_janitor_swept_total",
			Help: "Expired entries removed by the janitor.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.txOutcomes,
		c.rateLimited,
		c.swept,
	)

	return c
}

// ObserveHTTP records one finished request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) TxCommitted() {
	c.txOutcomes.WithLabelValues("commit").Inc()
}

func (c *Collector) TxRolledBack() {
	c.txOutcomes.WithLabelValues("rollback").Inc()
}

func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// Swept records entries removed by a janitor pass.
func (c *Collector) Swept(kind string, n int) {
	c.swept.WithLabelValues(kind).Add(float64(n))
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
