// Package prometheus exposes the extraction pipeline's operational metrics
// through a small facade so that intelligence packages stay decoupled from
// the metrics library.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics records the pipeline's operational telemetry.  All
// implementations must be safe for concurrent use.
type PipelineMetrics interface {
	// RecordExtraction counts one completed pipeline run and its duration,
	// labelled by the result method (regex_enhanced | escalated_to_llm |
	// fallback) and status (success | failed).
	RecordExtraction(method, status string, durationSeconds float64)

	// RecordEntityCount observes how many entities one run produced.
	RecordEntityCount(count int)

	// RecordEscalation counts one escalation-rule firing, labelled by rule.
	RecordEscalation(rule string)

	// RecordGenerativeCall counts one model-backend invocation and its
	// duration, labelled by outcome (success | error).
	RecordGenerativeCall(outcome string, durationSeconds float64)

	// RecordGroundingRejection counts one field rejected by the
	// source-grounding validator, labelled by field kind (medication,
	// dosage, frequency, condition, patient, lab_test, procedure).
	RecordGroundingRejection(field string)
}

// Default duration buckets: the pattern path completes in tens of
// milliseconds, the generative path in seconds.
var (
	defaultPipelineBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	defaultGenerativeBuckets = []float64{.25, .5, 1, 2, 5, 10, 30, 60}
	defaultEntityBuckets     = []float64{0, 1, 2, 3, 5, 8, 13, 21, 34}
)

type pipelineMetrics struct {
	registry *prometheus.Registry

	extractionsTotal     *prometheus.CounterVec
	extractionDuration   *prometheus.HistogramVec
	entityCount          prometheus.Histogram
	escalationsTotal     *prometheus.CounterVec
	generativeCallsTotal *prometheus.CounterVec
	generativeDuration   *prometheus.HistogramVec
	groundingRejections  *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metric family on a fresh
// registry under the given namespace and returns the facade.
func NewPipelineMetrics(namespace string) *pipelineMetrics {
	if namespace == "" {
		namespace = "ordersense"
	}
	registry := prometheus.NewRegistry()

	m := &pipelineMetrics{
		registry: registry,
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Completed extraction pipeline runs.",
		}, []string{"method", "status"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "End-to-end pipeline duration.",
			Buckets:   defaultPipelineBuckets,
		}, []string{"method"}),
		entityCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_entity_count",
			Help:      "Entities produced per pipeline run.",
			Buckets:   defaultEntityBuckets,
		}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation-policy rule firings.",
		}, []string{"rule"}),
		generativeCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generative_calls_total",
			Help:      "Generative model backend invocations.",
		}, []string{"outcome"}),
		generativeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generative_call_duration_seconds",
			Help:      "Generative model backend call duration.",
			Buckets:   defaultGenerativeBuckets,
		}, []string{"outcome"}),
		groundingRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grounding_rejections_total",
			Help:      "Fields rejected by the source-grounding validator.",
		}, []string{"field"}),
	}

	registry.MustRegister(
		m.extractionsTotal,
		m.extractionDuration,
		m.entityCount,
		m.escalationsTotal,
		m.generativeCallsTotal,
		m.generativeDuration,
		m.groundingRejections,
	)
	return m
}

func (m *pipelineMetrics) RecordExtraction(method, status string, durationSeconds float64) {
	m.extractionsTotal.WithLabelValues(method, status).Inc()
	m.extractionDuration.WithLabelValues(method).Observe(durationSeconds)
}

func (m *pipelineMetrics) RecordEntityCount(count int) {
	m.entityCount.Observe(float64(count))
}

func (m *pipelineMetrics) RecordEscalation(rule string) {
	m.escalationsTotal.WithLabelValues(rule).Inc()
}

func (m *pipelineMetrics) RecordGenerativeCall(outcome string, durationSeconds float64) {
	m.generativeCallsTotal.WithLabelValues(outcome).Inc()
	m.generativeDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

func (m *pipelineMetrics) RecordGroundingRejection(field string) {
	m.groundingRejections.WithLabelValues(field).Inc()
}

// Handler returns an http.Handler serving the metric registry in the
// Prometheus exposition format.  The surrounding service decides where (and
// whether) to mount it.
func (m *pipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry's Gather for tests.
func (m *pipelineMetrics) Gather() ([]*dtoMetricFamily, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make([]*dtoMetricFamily, 0, len(families))
	for _, f := range families {
		out = append(out, &dtoMetricFamily{Name: f.GetName(), MetricCount: len(f.GetMetric())})
	}
	return out, nil
}

// dtoMetricFamily is a minimal view over a gathered metric family, keeping
// the client_model types out of test code.
type dtoMetricFamily struct {
	Name        string
	MetricCount int
}

type nopMetrics struct{}

func (nopMetrics) RecordExtraction(_, _ string, _ float64)      {}
func (nopMetrics) RecordEntityCount(_ int)                      {}
func (nopMetrics) RecordEscalation(_ string)                    {}
func (nopMetrics) RecordGenerativeCall(_ string, _ float64)     {}
func (nopMetrics) RecordGroundingRejection(_ string)            {}

// NewNopPipelineMetrics returns a PipelineMetrics that records nothing.
func NewNopPipelineMetrics() PipelineMetrics { return nopMetrics{} }
