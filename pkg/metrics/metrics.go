// Package metrics exposes Prometheus collectors for report generation.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spend_insights"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	reportsGenerated  *prometheus.CounterVec
	reportDuration    prometheus.Histogram
	recordsLoaded     prometheus.Gauge
	lastSuccess       prometheus.Gauge
	narrativeOutcomes *prometheus.CounterVec
	narrativeAttempts *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
}

// New creates the collectors. Go runtime and process collectors are
// registered too.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Report generations by result.",
		}, []string{"result"}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_generation_seconds",
			Help:      "Time spent generating a report, narratives included.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		recordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Spend records read by the latest generation.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful generation.",
		}),
		narrativeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_total",
			Help:      "Narratives by orientation and outcome.",
		}, []string{"orientation", "outcome"}),
		narrativeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_attempts_total",
			Help:      "Calls to the narrative backend by result.",
		}, []string{"result"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failed artifact uploads and emails by target.",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reportsGenerated,
		m.reportDuration,
		m.recordsLoaded,
		m.lastSuccess,
		m.narrativeOutcomes,
		m.narrativeAttempts,
		m.publishFailures,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ReportGenerated records one generation attempt.
func (m *Metrics) ReportGenerated(records int, elapsed time.Duration, err error) {
	m.reportDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.reportsGenerated.WithLabelValues("error").Inc()
		return
	}
	m.reportsGenerated.WithLabelValues("success").Inc()
	m.recordsLoaded.Set(float64(records))
	m.lastSuccess.SetToCurrentTime()
}

// NarrativeOutcome counts how an insight's text was produced.
func (m *Metrics) NarrativeOutcome(orientation, outcome string) {
	m.narrativeOutcomes.WithLabelValues(orientation, outcome).Inc()
}

// NarrativeAttempt counts one backend call.
func (m *Metrics) NarrativeAttempt(err error) {
	switch {
	case err == nil:
		m.narrativeAttempts.WithLabelValues("success").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		m.narrativeAttempts.WithLabelValues("timeout").Inc()
	default:
		m.narrativeAttempts.WithLabelValues("error").Inc()
	}
}

// PublishFailed counts a failed publish step.
func (m *Metrics) PublishFailed(target string) {
	m.publishFailures.WithLabelValues(target).Inc()
}
