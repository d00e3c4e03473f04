// Package metrics records what the PGFN commands did: step outcomes and
// latencies, record counts per stage, insert batches and source files read.
//
// Calls go to a package-level Backend that discards everything until
// SetBackend installs a real one (see prompush and datadog).
package metrics

import "time"

// Metric names.
const (
	StepTotal           = "pgfn_step_total"
	StepDurationSeconds = "pgfn_step_duration_seconds"
	RecordsTotal        = "pgfn_records_total"
	BatchesTotal        = "pgfn_batches_total"
	FilesTotal          = "pgfn_files_total"
	SourceBytesTotal    = "pgfn_source_bytes_total"
)

// Record kinds passed to RecordRow.
const (
	KindParsed    = "parsed"
	KindLoaded    = "loaded"
	KindFiltered  = "filtered"
	KindExported  = "exported"
	KindPublished = "published"
)

// Labels are attached to a single observation.
type Labels map[string]string

// Backend receives observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush delivers anything buffered. Called once per process.
	Flush() error
}

type discard struct{}

func (discard) IncCounter(string, float64, Labels)       {}
func (discard) ObserveHistogram(string, float64, Labels) {}
func (discard) Flush() error                             { return nil }

var backend Backend = discard{}

// SetBackend installs b. A nil b is ignored.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

// Flush flushes the installed backend.
func Flush() error { return backend.Flush() }

// Outcome is the status label of a step.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one run of step and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	l := Labels{"job": job, "step": step, "status": Outcome(err)}
	backend.IncCounter(StepTotal, 1, l)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRow adds n records of the given kind. Non-positive n is dropped.
func RecordRow(job, kind string, n int64) {
	add(RecordsTotal, n, Labels{"job": job, "kind": kind})
}

// RecordBatches adds n flushed insert batches.
func RecordBatches(job string, n int64) {
	add(BatchesTotal, n, Labels{"job": job})
}

// RecordFile counts one source file of category and its raw size.
func RecordFile(job, category string, size int64) {
	l := Labels{"job": job, "category": category}
	add(FilesTotal, 1, l)
	add(SourceBytesTotal, size, l)
}

func add(name string, n int64, l Labels) {
	if n > 0 {
		backend.IncCounter(name, float64(n), l)
	}
}
