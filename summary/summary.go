// Package summary provides a Prometheus-style Summary metric: a running
// count and sum plus configurable φ-quantiles estimated over a sliding
// time window, aggregated per label-value combination.
//
//	requestDuration, err := summary.NewBuilder("http_request_duration_seconds").
//		WithHelp("HTTP request service time in seconds").
//		WithLabelNames("method", "path", "status_code").
//		WithQuantile(0.5).
//		WithQuantileEpsilon(0.95, 0.001).
//		WithQuantileEpsilon(0.99, 0.001).
//		Build()
//
//	dataPoint, err := requestDuration.WithLabelValues("GET", "/", "200")
//	dataPoint.Observe(0.027)
package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/metricsafe-go/metricsafe"
	"github.com/metricsafe-go/metricsafe/internal/util"
	"github.com/metricsafe-go/metricsafe/snapshot"
)

// Summary holds the metric configuration, the label schema, and one
// DataPoint per label-value combination. Data points are created lazily
// on first use and live for the summary's lifetime.
//
// Summaries are safe for concurrent use.
type Summary struct {
	metadata           snapshot.Metadata
	labelNames         []string
	targets            []util.QuantileTarget
	maxAgeSeconds      int64
	ageBuckets         int
	exemplarsEnabled   bool
	newExemplarSampler func() metricsafe.ExemplarSampler
	clock              metricsafe.Clock

	// Guards dataPoints
	mu         sync.RWMutex
	dataPoints map[string]*DataPoint
}

var _ metricsafe.MetricCore[*snapshot.SummarySnapshot] = &Summary{}

func (s *Summary) Name() string {
	return s.metadata.Name()
}

func (s *Summary) LabelNames() []string {
	return append([]string(nil), s.labelNames...)
}

// WithLabelValues returns the data point for the given label values,
// creating it on first use. The number of values must match the
// summary's label names.
func (s *Summary) WithLabelValues(labelValues ...string) (*DataPoint, error) {
	if len(labelValues) != len(s.labelNames) {
		return nil, fmt.Errorf("%w: %s expects %d label values, got %d",
			metricsafe.ErrConfiguration, s.metadata.Name(), len(s.labelNames), len(labelValues))
	}
	key := strings.Join(labelValues, "\x00")

	s.mu.RLock()
	dataPoint := s.dataPoints[key]
	s.mu.RUnlock()
	if dataPoint != nil {
		return dataPoint, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dataPoint = s.dataPoints[key]; dataPoint == nil {
		dataPoint = s.newDataPoint(snapshot.NewLabels(s.labelNames, labelValues))
		s.dataPoints[key] = dataPoint
	}
	return dataPoint, nil
}

// Observe records a value on the label-less fast path. It fails with
// ErrUsage when the summary was created with label names.
func (s *Summary) Observe(value float64) error {
	dataPoint, err := s.noLabels()
	if err != nil {
		return err
	}
	dataPoint.Observe(value)
	return nil
}

// ObserveWithExemplar records a value with exemplar labels on the
// label-less fast path. It fails with ErrUsage when the summary was
// created with label names.
func (s *Summary) ObserveWithExemplar(value float64, exemplarLabels snapshot.Labels) error {
	dataPoint, err := s.noLabels()
	if err != nil {
		return err
	}
	dataPoint.ObserveWithExemplar(value, exemplarLabels)
	return nil
}

func (s *Summary) noLabels() (*DataPoint, error) {
	if len(s.labelNames) > 0 {
		return nil, fmt.Errorf("%w: %s has label names, use WithLabelValues",
			metricsafe.ErrUsage, s.metadata.Name())
	}
	return s.WithLabelValues()
}

// Collect returns an immutable snapshot of every data point, ordered by
// labels ascending. Collect never fails once construction succeeded.
func (s *Summary) Collect() *snapshot.SummarySnapshot {
	s.mu.RLock()
	dataPoints := make([]*DataPoint, 0, len(s.dataPoints))
	for _, dataPoint := range s.dataPoints {
		dataPoints = append(dataPoints, dataPoint)
	}
	s.mu.RUnlock()

	sort.Slice(dataPoints, func(i, j int) bool {
		return dataPoints[i].labels.Compare(dataPoints[j].labels) < 0
	})
	data := make([]*snapshot.SummaryDataPointSnapshot, 0, len(dataPoints))
	for _, dataPoint := range dataPoints {
		data = append(data, dataPoint.collect())
	}
	return snapshot.NewSummarySnapshot(s.metadata, data)
}

func (s *Summary) newDataPoint(labels snapshot.Labels) *DataPoint {
	dataPoint := &DataPoint{
		targets:           s.targets,
		labels:            labels,
		createdTimeMillis: s.clock.CurrentUnixMilli(),
	}
	if len(s.targets) > 0 {
		targets := s.targets
		dataPoint.quantileValues = util.NewSlidingWindow(
			s.clock,
			func() *util.CKMSQuantiles { return util.NewCKMSQuantiles(targets) },
			(*util.CKMSQuantiles).Insert,
			s.maxAgeSeconds,
			s.ageBuckets,
		)
	}
	if s.exemplarsEnabled && s.newExemplarSampler != nil {
		dataPoint.exemplarSampler = s.newExemplarSampler()
	}
	return dataPoint
}

// DataPoint is the aggregate state of one label-value combination:
// count, sum, the windowed quantile estimators, and optionally an
// exemplar sampler.
//
// Data points are safe for concurrent use. Observers never block on a
// collector; at most one collect per data point runs at a time.
type DataPoint struct {
	count          atomic.Uint64
	sum            atomic.Float64
	quantileValues *util.SlidingWindow[*util.CKMSQuantiles] // nil when no quantile targets
	buf            buffer

	exemplarSampler   metricsafe.ExemplarSampler // nil when disabled
	targets           []util.QuantileTarget
	labels            snapshot.Labels
	createdTimeMillis int64
}

// Observe records a value. NaN observations are silently dropped.
func (d *DataPoint) Observe(value float64) {
	if math.IsNaN(value) {
		return
	}
	if !d.buf.append(value) {
		d.doObserve(value)
	}
	if d.exemplarSampler != nil {
		d.exemplarSampler.Observe(value)
	}
}

// ObserveWithExemplar records a value together with exemplar labels,
// typically trace and span identifiers. NaN observations are silently
// dropped.
func (d *DataPoint) ObserveWithExemplar(value float64, exemplarLabels snapshot.Labels) {
	if math.IsNaN(value) {
		return
	}
	if !d.buf.append(value) {
		d.doObserve(value)
	}
	if d.exemplarSampler != nil {
		d.exemplarSampler.ObserveWithExemplar(value, exemplarLabels)
	}
}

func (d *DataPoint) doObserve(value float64) {
	d.sum.Add(value)
	if d.quantileValues != nil {
		d.quantileValues.Observe(value)
	}
	// count must be incremented last: a collector that has seen the new
	// count has also seen the corresponding sum and estimator updates.
	d.count.Inc()
}

func (d *DataPoint) collect() *snapshot.SummaryDataPointSnapshot {
	return d.buf.run(
		func(expectedCount uint64) bool { return d.count.Load() == expectedCount },
		func() *snapshot.SummaryDataPointSnapshot {
			var exemplars snapshot.Exemplars
			if d.exemplarSampler != nil {
				exemplars = d.exemplarSampler.Collect()
			}
			return snapshot.NewSummaryDataPointSnapshot(
				d.count.Load(),
				d.sum.Load(),
				d.makeQuantiles(),
				d.labels,
				exemplars,
				d.createdTimeMillis,
			)
		},
		d.doObserve,
	)
}

// makeQuantiles queries the current estimator at each target φ, in
// configured order. The estimators are only queried inside the buffer's
// collect protocol, when no inline observation can be running.
func (d *DataPoint) makeQuantiles() snapshot.Quantiles {
	if d.quantileValues == nil {
		return nil
	}
	quantiles := make(snapshot.Quantiles, 0, len(d.targets))
	for _, target := range d.targets {
		quantiles = append(quantiles, snapshot.Quantile{
			Quantile: target.Phi(),
			Value:    d.quantileValues.Current().Get(target.Phi()),
		})
	}
	return quantiles
}
