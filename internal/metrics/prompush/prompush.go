// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. The commands are short-lived with no scrape endpoint, so
// everything is collected in a private registry and pushed once on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"dividapgfn/internal/metrics"
)

// counterDef describes one counter family. The job label is omitted: the
// Pushgateway groups by job already.
type counterDef struct {
	name   string
	help   string
	labels []string
}

var counterDefs = []counterDef{
	{metrics.StepTotal, "Command steps run, by step and status.", []string{"step", "status"}},
	{metrics.RecordsTotal, "Debt records handled, by kind.", []string{"kind"}},
	{metrics.BatchesTotal, "Insert batches flushed.", nil},
	{metrics.FilesTotal, "Source extracts read, by category.", []string{"category"}},
	{metrics.SourceBytesTotal, "Raw bytes of source extracts, by category.", []string{"category"}},
}

type family struct {
	vec    *prometheus.CounterVec
	labels []string
}

// Backend collects into its own registry and pushes it to a Pushgateway.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry
	counters   map[string]family
	durations  *prometheus.SummaryVec
}

// NewBackend returns a Backend pushing to gatewayURL under jobName ("pgfn"
// when empty).
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "pgfn"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]family, len(counterDefs)),
	}
	for _, d := range counterDefs {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: d.name, Help: d.help}, d.labels)
		if err := b.reg.Register(vec); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", d.name, err)
		}
		b.counters[d.name] = family{vec: vec, labels: d.labels}
	}
	b.durations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       metrics.StepDurationSeconds,
		Help:       "Command step duration in seconds, by step and status.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"step", "status"})
	if err := b.reg.Register(b.durations); err != nil {
		return nil, fmt.Errorf("prompush: register %s: %w", metrics.StepDurationSeconds, err)
	}
	return b, nil
}

// Gatherer exposes the registry, mostly for tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

// IncCounter adds delta to a known counter. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	f, ok := b.counters[name]
	if !ok {
		return
	}
	f.vec.WithLabelValues(values(f.labels, labels)...).Add(delta)
}

// ObserveHistogram records step durations. Other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push %s: %w", b.gatewayURL, err)
	}
	return nil
}

func values(names []string, labels metrics.Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = labels[n]
	}
	return out
}
