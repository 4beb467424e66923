// Package metricsafe provides in-process metric instrumentation cores.
// Metric cores aggregate observations from concurrent application
// goroutines and emit immutable snapshots for an exposition collaborator
// to format. See the summary package for the Summary metric.
package metricsafe

import (
	"errors"
	"time"

	"github.com/metricsafe-go/metricsafe/snapshot"
)

var (
	// ErrConfiguration indicates an invalid metric configuration, such as
	// an out-of-range quantile or a wrong number of label values.
	ErrConfiguration = errors.New("invalid metric configuration")

	// ErrUsage indicates a call that is invalid for the metric's
	// configuration, such as a label-less observation on a labeled metric.
	ErrUsage = errors.New("invalid metric usage")
)

// MetricCore is a metric variant that aggregates observations per label
// set and produces snapshots of type S.
type MetricCore[S snapshot.MetricSnapshot] interface {
	Name() string
	LabelNames() []string
	Collect() S
}

// Clock provides wall-clock time. It is injectable so that time-windowed
// metric state can be tested deterministically.
type Clock interface {
	CurrentUnixMilli() int64
}

// SystemClock is a Clock backed by the system wall clock.
type SystemClock struct{}

func (SystemClock) CurrentUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// ExemplarSampler selects exemplars from an observation stream. Metric
// cores invoke it on every observation and include its collected
// exemplars in snapshots. Implementations must be safe for concurrent
// use.
type ExemplarSampler interface {
	Observe(value float64)
	ObserveWithExemplar(value float64, labels snapshot.Labels)
	Collect() snapshot.Exemplars
}

// Config carries process-wide metric defaults. Builders start from a
// Config value; DefaultConfig provides the defaults at the edge where a
// builder is instantiated.
type Config struct {
	// SummaryMaxAgeSeconds is the size of the moving time window that
	// summary quantiles are relative to.
	SummaryMaxAgeSeconds int64

	// SummaryNumberOfAgeBuckets defines how smoothly the time window
	// moves forward. A 5 minute window with 5 age buckets moves forward
	// every minute by one minute.
	SummaryNumberOfAgeBuckets int

	// ExemplarsEnabled controls whether metrics invoke their exemplar
	// sampler.
	ExemplarsEnabled bool
}

// DefaultConfig returns the process-wide metric defaults.
func DefaultConfig() Config {
	return Config{
		SummaryMaxAgeSeconds:      300,
		SummaryNumberOfAgeBuckets: 5,
		ExemplarsEnabled:          true,
	}
}
