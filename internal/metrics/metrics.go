// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// The primary use case is instrumentation of the pipeline phases (reorg,
// delta, optimize, validate) without coupling the orchestration logic to a
// specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordPhase is a convenience for the common pattern:
// measure duration + success/failure per pipeline phase.
func RecordPhase(job, phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"phase":  phase,
		"status": status,
	}

	backend.IncCounter("pipeline_phase_total", 1, lbls)
	backend.ObserveHistogram("pipeline_phase_duration_seconds", d.Seconds(), lbls)
}

// RecordShards increments a shard-level counter for the given job and kind.
//
// Typical kinds mirror the phase statistics fields:
//   - "created"
//   - "processed"
//   - "skipped"
//   - "failed"
func RecordShards(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("pipeline_shards_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordIssues counts validation issues per target (raw, organized, delta).
func RecordIssues(job, target string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("pipeline_validation_issues_total", float64(delta), Labels{
		"job":    job,
		"target": target,
	})
}
