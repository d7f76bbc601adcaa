// Package metrics is a small, backend-agnostic recording layer for the
// sanitation pipeline. The default backend is a no-op so instrumentation is
// always safe to call; a concrete backend (Prometheus Pushgateway) can be
// installed at startup.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must provide.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes collected metrics when the backend needs it (e.g. a
	// Pushgateway at the end of a batch run).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the current one.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStep records one pipeline step execution with its duration and
// success/failure status. Steps are the per-file stages: read, normalize,
// validate, partition, export, store, archive.
func RecordStep(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"step": step, "status": status}
	backend.IncCounter("sanitize_step_total", 1, lbls)
	backend.ObserveHistogram("sanitize_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments the row counter for a kind: "read", "clean",
// "quarantined".
func RecordRows(kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("sanitize_rows_total", float64(delta), Labels{"kind": kind})
}

// RecordFile increments the file counter for an outcome: "archived",
// "rejected", "duplicate".
func RecordFile(outcome string) {
	backend.IncCounter("sanitize_files_total", 1, Labels{"outcome": outcome})
}
