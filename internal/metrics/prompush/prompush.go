// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the common pipeline labels (job, phase, status) onto Prometheus
//     labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint; a batch pipeline has nothing to
//     scrape once the process exits.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus.
package prompush

import (
	"fmt"

	"lakereorg/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	phaseCounter  *prometheus.CounterVec // "pipeline_phase_total"
	phaseDuration *prometheus.SummaryVec // "pipeline_phase_duration_seconds"

	shardCounter *prometheus.CounterVec // "pipeline_shards_total"
	issueCounter *prometheus.CounterVec // "pipeline_validation_issues_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lakereorg"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key; phase and status are dynamic.
	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_phase_total",
			Help: "Total number of pipeline phase executions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "pipeline_phase_duration_seconds",
			Help:       "Duration of pipeline phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)
	shardCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_shards_total",
			Help: "Shard-level counts per kind (created, processed, skipped, failed).",
		},
		[]string{"kind"},
	)
	issueCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_validation_issues_total",
			Help: "Validation issues found, partitioned by target (raw, organized, delta).",
		},
		[]string{"target"},
	)

	if err := reg.Register(phaseCounter); err != nil {
		return nil, fmt.Errorf("prompush: register phase counter: %w", err)
	}
	if err := reg.Register(phaseDuration); err != nil {
		return nil, fmt.Errorf("prompush: register phase summary: %w", err)
	}
	if err := reg.Register(shardCounter); err != nil {
		return nil, fmt.Errorf("prompush: register shard counter: %w", err)
	}
	if err := reg.Register(issueCounter); err != nil {
		return nil, fmt.Errorf("prompush: register issue counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		phaseCounter:  phaseCounter,
		phaseDuration: phaseDuration,
		shardCounter:  shardCounter,
		issueCounter:  issueCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "pipeline_phase_total":
		if b.phaseCounter == nil {
			return
		}
		b.phaseCounter.WithLabelValues(labels["phase"], labels["status"]).Add(delta)

	case "pipeline_shards_total":
		if b.shardCounter == nil {
			return
		}
		b.shardCounter.WithLabelValues(labels["kind"]).Add(delta)

	case "pipeline_validation_issues_total":
		if b.issueCounter == nil {
			return
		}
		b.issueCounter.WithLabelValues(labels["target"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "pipeline_phase_duration_seconds" || b.phaseDuration == nil {
		return
	}
	b.phaseDuration.WithLabelValues(labels["phase"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
