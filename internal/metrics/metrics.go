// Package metrics records operational metrics for extract-load runs behind a
// small, backend-agnostic interface.
//
// A global backend defaults to a no-op so instrumentation is always safe to
// call; concrete systems (Prometheus Pushgateway, Datadog) live in
// subpackages and are installed with SetBackend.
package metrics

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal    = "elt_step_total"
	StepDuration = "elt_step_duration_seconds"
	UnitsTotal   = "elt_units_total"
	RowsTotal    = "elt_rows_total"
	ChunksTotal  = "elt_chunks_total"
	RunsTotal    = "elt_runs_total"
)

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

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// Close flushes the current backend and, when it holds a connection,
// closes it. Call it once at shutdown.
func Close() error {
	b := current()
	err := b.Flush()
	if c, ok := b.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one execution of a named step and observes its latency.
// Steps are the per-unit stages (fetch, infer, replace, write) and the
// workflow stages (extract, dbt_run, dbt_test, refresh).
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordUnit counts a unit reaching a terminal state. outcome is one of
// "processed", "failed" or "skipped".
func RecordUnit(job, outcome string) {
	current().IncCounter(UnitsTotal, 1, Labels{"job": job, "outcome": outcome})
}

// RecordRow increments a row-level counter for the given job and kind,
// e.g. "fetched" or "written".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordChunks increments the written-chunk counter for the given job.
func RecordChunks(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(ChunksTotal, float64(delta), Labels{"job": job})
}

// RecordRun counts a finished batch run by its final status.
func RecordRun(job, runStatus string) {
	current().IncCounter(RunsTotal, 1, Labels{"job": job, "status": runStatus})
}
