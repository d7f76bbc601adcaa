// Package prompush adapts metrics.Backend to a Prometheus Pushgateway. The
// pipeline is a short-lived batch binary, so pushing at the end of a run
// fits better than exposing a scrape endpoint. All Prometheus-specific code
// lives here; the rest of the pipeline only sees metrics.Backend.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/metrics"
)

// Backend pushes the run's counters to a Pushgateway.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	rowCounter   *prometheus.CounterVec
	fileCounter  *prometheus.CounterVec
}

// NewBackend builds a Pushgateway backend. jobName groups the run on the
// gateway; gatewayURL is its base URL.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sanitize"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sanitize_step_total",
		Help: "Pipeline step executions, partitioned by step and status.",
	}, []string{"step", "status"})
	stepDuration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "sanitize_step_duration_seconds",
		Help:       "Pipeline step durations in seconds, partitioned by step and status.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"step", "status"})
	rowCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sanitize_rows_total",
		Help: "Row counts per kind (read, clean, quarantined).",
	}, []string{"kind"})
	fileCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sanitize_files_total",
		Help: "Input file counts per outcome (archived, rejected, duplicate).",
	}, []string{"outcome"})

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, rowCounter, fileCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowCounter:   rowCounter,
		fileCounter:  fileCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "sanitize_step_total":
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "sanitize_rows_total":
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "sanitize_files_total":
		b.fileCounter.WithLabelValues(labels["outcome"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == "sanitize_step_duration_seconds" {
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	}
}

// Flush pushes the registry to the gateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
