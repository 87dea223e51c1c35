// Package metrics records operational metrics of a reporting run behind a
// small pluggable Backend.
//
// A no-op backend is installed by default so every Record* call is safe
// without configuration. Concrete systems live in subpackages (prompush for a
// Prometheus Pushgateway, datadog for DogStatsD) and are selected by the CLI.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal        = "etl_step_total"
	StepDuration     = "etl_step_duration_seconds"
	RowsTotal        = "etl_rows_total"
	IssuesTotal      = "etl_quality_issues_total"
	BatchesTotal     = "etl_batches_total"
	TopCustomerShare = "etl_top_customer_share"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style observation.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets the current value of a gauge.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
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

// RecordStep counts one execution of a pipeline step and observes its
// duration, labelled with success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows of one table as seen by a stage, e.g.
// stage "extracted", "validated", "dropped", "cleaned", "loaded".
func RecordRows(job, stage, table string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"job": job, "stage": stage, "table": table})
}

// RecordIssues counts data quality issues of one kind (a validation warning
// kind, "imputation_gap" or "join_orphan").
func RecordIssues(job, kind string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(IssuesTotal, float64(n), Labels{"job": job, "kind": kind})
}

// RecordBatches counts database batches flushed by the loader.
func RecordBatches(job string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(n), Labels{"job": job})
}

// RecordTopShare publishes the spend share of the top customer slice.
func RecordTopShare(job string, share float64) {
	current().SetGauge(TopCustomerShare, share, Labels{"job": job})
}
