// Package telemetry exposes Prometheus metrics for credential issuance
// and secret resolution. Metric values only ever count outcomes; no
// tenant identifiers or secret material appear in labels.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "catalyst_creds"

// Metrics is a prometheus.Collector covering the credential service.
type Metrics struct {
	registry *prometheus.Registry

	tokenIssuance    *prometheus.CounterVec
	bundleIssuance   *prometheus.CounterVec
	tokenReviews     *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

// NewMetrics creates the Metrics collector with its own registry, so
// tests can construct several instances without duplicate registration.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenIssuance: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "git_tokens_issued_total",
				Help:      "Git token issuance attempts by outcome.",
			}, []string{"outcome"},
		),
		bundleIssuance: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "secret_bundles_issued_total",
				Help:      "Secret bundle issuance attempts by outcome.",
			}, []string{"outcome"},
		),
		tokenReviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "token_reviews_total",
				Help:      "Bearer token validations against the cluster by outcome.",
			}, []string{"outcome"},
		),
		requestDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route and status code.",
				Buckets:   []float64{0.005, 0.02, 0.1, 0.5, 1, 2, 5, 10},
			}, []string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		m.tokenIssuance,
		m.bundleIssuance,
		m.tokenReviews,
		m.requestDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTokenIssuance counts one git token issuance attempt.
func (m *Metrics) ObserveTokenIssuance(outcome string) {
	m.tokenIssuance.WithLabelValues(outcome).Inc()
}

// ObserveBundleIssuance counts one secret bundle issuance attempt.
func (m *Metrics) ObserveBundleIssuance(outcome string) {
	m.bundleIssuance.WithLabelValues(outcome).Inc()
}

// ObserveTokenReview counts one bearer token validation.
func (m *Metrics) ObserveTokenReview(outcome string) {
	m.tokenReviews.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request's latency.
func (m *Metrics) ObserveRequest(route, code string, seconds float64) {
	m.requestDurations.WithLabelValues(route, code).Observe(seconds)
}

// Handler serves the /metrics scrape endpoint for this collector set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
