// Package metrics records what the mock server serves.
//
// Metric naming follows Prometheus conventions:
//   - ramlizer_ prefix for all metrics
//   - _total suffix for counters
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry so independent servers (and tests) never share counters.
// A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// ResponsesServed counts mock responses by route and status code.
	ResponsesServed *prometheus.CounterVec

	// SelectionFallbacks counts responses that could not be served as planned.
	SelectionFallbacks *prometheus.CounterVec

	// NegotiationFailures counts requests refused because no offered media type was acceptable.
	NegotiationFailures *prometheus.CounterVec

	// Reconfigurations counts plan changes by route.
	Reconfigurations *prometheus.CounterVec

	// DocumentsLoaded counts loaded documents by outcome.
	DocumentsLoaded *prometheus.CounterVec

	// CatalogRoutes is the number of routes being mocked.
	CatalogRoutes prometheus.Gauge
}

// New returns a Recorder with every metric registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ResponsesServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramlizer_responses_served_total",
				Help: "Total mock responses served by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		SelectionFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramlizer_selection_fallbacks_total",
				Help: "Total responses that fell back from the planned response, by reason.",
			},
			[]string{"method", "route", "reason"},
		),
		NegotiationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramlizer_negotiation_failures_total",
				Help: "Total requests whose Accept header matched no offered media type.",
			},
			[]string{"method", "route"},
		),
		Reconfigurations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramlizer_reconfigurations_total",
				Help: "Total plan changes by method and route.",
			},
			[]string{"method", "route"},
		),
		DocumentsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramlizer_documents_loaded_total",
				Help: "Total documents loaded by status.",
			},
			[]string{"status"},
		),
		CatalogRoutes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ramlizer_catalog_routes",
				Help: "Number of cataloged routes being mocked.",
			},
		),
	}

	r.registry.MustRegister(
		r.ResponsesServed,
		r.SelectionFallbacks,
		r.NegotiationFailures,
		r.Reconfigurations,
		r.DocumentsLoaded,
		r.CatalogRoutes,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordServed records a served response and the fallbacks it took
func (r *Recorder) RecordServed(method, route, code string, fallbacks ...string) {
	if r == nil {
		return
	}

	r.ResponsesServed.WithLabelValues(method, route, code).Inc()
	for _, reason := range fallbacks {
		r.SelectionFallbacks.WithLabelValues(method, route, reason).Inc()
	}
}

// RecordNotAcceptable records a request refused by negotiation
func (r *Recorder) RecordNotAcceptable(method, route string) {
	if r == nil {
		return
	}

	r.NegotiationFailures.WithLabelValues(method, route).Inc()
}

// RecordReconfiguration records a plan change
func (r *Recorder) RecordReconfiguration(method, route string) {
	if r == nil {
		return
	}

	r.Reconfigurations.WithLabelValues(method, route).Inc()
}

// RecordDocument records the outcome of loading one document
func (r *Recorder) RecordDocument(err error) {
	if r == nil {
		return
	}

	status := "loaded"
	if err != nil {
		status = "failed"
	}

	r.DocumentsLoaded.WithLabelValues(status).Inc()
}

// SetCatalogRoutes records how many routes are mocked
func (r *Recorder) SetCatalogRoutes(n int) {
	if r == nil {
		return
	}

	r.CatalogRoutes.Set(float64(n))
}
