// Package metrics exposes Prometheus collectors for runs, API calls and
// optimizer iterations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the fllm collectors. A nil *Registry is a valid no-op.
type Registry struct {
	reg        *prometheus.Registry
	cases      *prometheus.CounterVec
	completion prometheus.Histogram
	requests   *prometheus.HistogramVec
	iterations *prometheus.CounterVec
}

// New builds a registry with Go runtime collectors and the fllm metrics.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fllm_test_cases_total",
			Help: "Test cases evaluated, by final status.",
		}, []string{"status"}),
		completion: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fllm_completion_seconds",
			Help:    "Latency of agent completions observed by the harness.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fllm_api_request_seconds",
			Help:    "Latency of REST API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"api", "method", "code"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fllm_optimizer_iterations_total",
			Help: "Optimizer iterations, by decision.",
		}, []string{"decision"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cases,
		r.completion,
		r.requests,
		r.iterations,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying gatherer for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveCase records a finished test case.
func (r *Registry) ObserveCase(status string, latency time.Duration) {
	if r == nil {
		return
	}
	r.cases.WithLabelValues(status).Inc()
	if latency > 0 {
		r.completion.Observe(latency.Seconds())
	}
}

// ObserveRequest records a REST request.
func (r *Registry) ObserveRequest(api, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(api, method, code).Observe(elapsed.Seconds())
}

// ObserveIteration records an optimizer decision.
func (r *Registry) ObserveIteration(decision string) {
	if r == nil {
		return
	}
	r.iterations.WithLabelValues(decision).Inc()
}
