// Package metrics exposes Prometheus collectors for the ledger.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the ledger's collectors.
type Recorder struct {
	registry *prometheus.Registry

	computations  *prometheus.CounterVec
	computeTime   *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_balance_computations_total",
			Help: "Balance computations by scope kind.",
		}, []string{"scope"}),
		computeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_balance_computation_seconds",
			Help:    "Time spent fetching and computing balances.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scope"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_view_cache_requests_total",
			Help: "Balance view cache lookups by result.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invalidations_total",
			Help: "Invalidations received by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_validation_rejections_total",
			Help: "Ledger mutations rejected by validation, by error code.",
		}, []string{"code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.computations,
		r.computeTime,
		r.cacheRequests,
		r.invalidations,
		r.rejections,
		r.httpDuration,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveComputation records one balance computation for a scope kind.
func (r *Recorder) ObserveComputation(scope string, d time.Duration) {
	if r == nil {
		return
	}
	r.computations.WithLabelValues(scope).Inc()
	r.computeTime.WithLabelValues(scope).Observe(d.Seconds())
}

// CacheHit records a view cache hit.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues("hit").Inc()
}

// CacheMiss records a view cache miss.
func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues("miss").Inc()
}

// Invalidation records a received invalidation.
func (r *Recorder) Invalidation(kind string) {
	if r == nil {
		return
	}
	r.invalidations.WithLabelValues(kind).Inc()
}

// Rejection records a validation failure by its API code.
func (r *Recorder) Rejection(code string) {
	if r == nil || code == "" {
		return
	}
	r.rejections.WithLabelValues(code).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware times every request, labelled by its chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
