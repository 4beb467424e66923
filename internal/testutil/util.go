package testutil

import (
	"sync"

	"github.com/metricsafe-go/metricsafe/snapshot"
)

// TestClock is a Clock whose time is set manually.
type TestClock struct {
	CurrentMillis int64
}

func NewTestClock(millis int64) *TestClock {
	return &TestClock{CurrentMillis: millis}
}

func (t *TestClock) CurrentUnixMilli() int64 {
	return t.CurrentMillis
}

func (t *TestClock) Advance(millis int64) {
	t.CurrentMillis += millis
}

// RecordingExemplarSampler records every observation it is handed and
// serves the exemplars accumulated from ObserveWithExemplar.
type RecordingExemplarSampler struct {
	mu           sync.Mutex
	Observed     []float64
	WithExemplar []float64
	Exemplars    snapshot.Exemplars
}

func (s *RecordingExemplarSampler) Observe(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Observed = append(s.Observed, value)
}

func (s *RecordingExemplarSampler) ObserveWithExemplar(value float64, labels snapshot.Labels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WithExemplar = append(s.WithExemplar, value)
	s.Exemplars = append(s.Exemplars, snapshot.Exemplar{Value: value, Labels: labels})
}

func (s *RecordingExemplarSampler) Collect() snapshot.Exemplars {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(snapshot.Exemplars(nil), s.Exemplars...)
}
