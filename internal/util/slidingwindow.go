package util

import (
	"sync"

	"github.com/metricsafe-go/metricsafe"
)

// SlidingWindow rotates through a fixed ring of estimator instances so
// that the current instance only reflects recent observations. Each
// bucket covers maxAgeSeconds/ageBuckets of wall-clock time; rotation
// advances lazily on access, against the injected clock, so no
// background goroutine is needed.
//
// An observation belongs to exactly one bucket: the current one at the
// time it is observed. Current therefore aggregates observations from
// the active bucket only, which is the tradeoff for bounded memory.
type SlidingWindow[T any] struct {
	clock                  metricsafe.Clock
	newInstance            func() T
	observeFn              func(T, float64)
	rotationIntervalMillis int64

	// Mutable state, guarded by mu
	mu                     sync.Mutex
	ringBuffer             []T
	currentBucket          int
	rotationDeadlineMillis int64
}

// NewSlidingWindow creates a window of ageBuckets instances produced by
// newInstance, spanning maxAgeSeconds, fed through observeFn.
func NewSlidingWindow[T any](clock metricsafe.Clock, newInstance func() T, observeFn func(T, float64), maxAgeSeconds int64, ageBuckets int) *SlidingWindow[T] {
	ringBuffer := make([]T, ageBuckets)
	for i := range ringBuffer {
		ringBuffer[i] = newInstance()
	}
	rotationIntervalMillis := maxAgeSeconds * 1000 / int64(ageBuckets)
	return &SlidingWindow[T]{
		clock:                  clock,
		newInstance:            newInstance,
		observeFn:              observeFn,
		rotationIntervalMillis: rotationIntervalMillis,
		ringBuffer:             ringBuffer,
		rotationDeadlineMillis: clock.CurrentUnixMilli() + rotationIntervalMillis,
	}
}

// Observe records a value into the current bucket.
func (w *SlidingWindow[T]) Observe(value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotate()
	w.observeFn(w.ringBuffer[w.currentBucket], value)
}

// Current returns the active estimator instance post-rotation. The
// returned instance is safe to query as long as no observation can run
// concurrently, which the summary's collect protocol guarantees.
func (w *SlidingWindow[T]) Current() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotate()
	return w.ringBuffer[w.currentBucket]
}

// rotate advances the ring while the current bucket's deadline has
// passed: the oldest bucket is reinitialized and becomes current. After
// a full lap the window has gone completely stale, so every bucket is
// reinitialized and the deadline is re-anchored at now.
func (w *SlidingWindow[T]) rotate() {
	now := w.clock.CurrentUnixMilli()
	for steps := 0; now >= w.rotationDeadlineMillis; steps++ {
		if steps == len(w.ringBuffer) {
			for i := range w.ringBuffer {
				w.ringBuffer[i] = w.newInstance()
			}
			w.currentBucket = 0
			w.rotationDeadlineMillis = now + w.rotationIntervalMillis
			return
		}
		next := w.currentBucket + 1
		if next == len(w.ringBuffer) {
			next = 0
		}
		w.ringBuffer[next] = w.newInstance()
		w.currentBucket = next
		w.rotationDeadlineMillis += w.rotationIntervalMillis
	}
}
