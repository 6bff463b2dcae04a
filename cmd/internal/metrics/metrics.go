// Package metrics exposes Prometheus instruments for sessions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"coursehub/cmd/internal/auth/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coursehub"

// Registry owns a private Prometheus registry and the instruments registered on it.
type Registry struct {
	reg *prometheus.Registry

	validations *prometheus.CounterVec
	swept       prometheus.Counter
	purged      prometheus.Counter
	requests    *prometheus.HistogramVec
}

// New registers every instrument plus the Go runtime and process collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	r := &Registry{
		reg: reg,
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "validations_total",
			Help:      "Session validations by outcome.",
		}, []string{"outcome"}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Sessions deactivated by the background sweep.",
		}),
		purged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "purged_total",
			Help:      "Session records deleted after the retention window.",
		}),
		requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}

	// Pre-create every outcome so dashboards see zeros instead of gaps.
	r.validations.WithLabelValues(session.Accepted.Label())
	for _, reason := range session.Reasons {
		r.validations.WithLabelValues(reason.Label())
	}
	return r
}

// ObserveValidation implements session.Metrics.
func (r *Registry) ObserveValidation(reason session.Reason) {
	r.validations.WithLabelValues(reason.Label()).Inc()
}

// AddSwept implements session.Metrics.
func (r *Registry) AddSwept(n int64) {
	if n > 0 {
		r.swept.Add(float64(n))
	}
}

// AddPurged implements session.Metrics.
func (r *Registry) AddPurged(n int64) {
	if n > 0 {
		r.purged.Add(float64(n))
	}
}

// ObserveHTTP records one finished request. route should be the router pattern, not the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

var _ session.Metrics = (*Registry)(nil)
