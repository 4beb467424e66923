package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metricsafe-go/metricsafe"
	"github.com/metricsafe-go/metricsafe/internal/testutil"
)

type recordingEstimator struct {
	values []float64
}

func newRecordingWindow(clock metricsafe.Clock, maxAgeSeconds int64, ageBuckets int) *SlidingWindow[*recordingEstimator] {
	return NewSlidingWindow(
		clock,
		func() *recordingEstimator { return &recordingEstimator{} },
		func(e *recordingEstimator, value float64) { e.values = append(e.values, value) },
		maxAgeSeconds,
		ageBuckets,
	)
}

// Asserts that observations land in the current bucket.
func TestSlidingWindow_ObservesIntoCurrentBucket(t *testing.T) {
	clock := testutil.NewTestClock(0)
	window := newRecordingWindow(clock, 10, 5)

	window.Observe(1)
	window.Observe(2)

	assert.Equal(t, []float64{1, 2}, window.Current().values)
}

// Asserts that the current bucket survives until its rotation deadline.
func TestSlidingWindow_KeepsCurrentBucketUntilDeadline(t *testing.T) {
	clock := testutil.NewTestClock(0)
	window := newRecordingWindow(clock, 10, 5) // 2 second buckets

	window.Observe(1)
	clock.Advance(1999)

	assert.Equal(t, []float64{1}, window.Current().values)
}

// Asserts that reaching the deadline rotates to a fresh bucket.
func TestSlidingWindow_RotatesAfterBucketDuration(t *testing.T) {
	clock := testutil.NewTestClock(0)
	window := newRecordingWindow(clock, 10, 5)

	window.Observe(1)
	clock.Advance(2000)

	assert.Empty(t, window.Current().values)
}

// Asserts that a gap longer than the whole window reinitializes every
// bucket and re-anchors the deadlines at the current time.
func TestSlidingWindow_ReanchorsAfterLongGap(t *testing.T) {
	clock := testutil.NewTestClock(0)
	window := newRecordingWindow(clock, 10, 5)

	window.Observe(1)
	clock.Advance(25000)
	require.Empty(t, window.Current().values)

	// The fresh current bucket lasts a full bucket duration from now
	window.Observe(2)
	clock.Advance(1999)
	assert.Equal(t, []float64{2}, window.Current().values)
	clock.Advance(1)
	assert.Empty(t, window.Current().values)
}

// Asserts that rotation within one lap keeps deadlines aligned to the
// original schedule rather than re-anchoring.
func TestSlidingWindow_KeepsDeadlineScheduleWithinOneLap(t *testing.T) {
	clock := testutil.NewTestClock(0)
	window := newRecordingWindow(clock, 10, 5)

	// 11s gap: five advances move the deadline from 2s to 12s
	clock.Advance(11000)
	window.Observe(1)

	clock.Advance(999) // 11999 < 12000
	assert.Equal(t, []float64{1}, window.Current().values)
	clock.Advance(1) // 12000: rotate
	assert.Empty(t, window.Current().values)
}

// Asserts that quantiles queried through the window go stale once the
// observations fall out of the active bucket.
func TestSlidingWindow_QuantilesGoStale(t *testing.T) {
	clock := testutil.NewTestClock(0)
	targets := []QuantileTarget{mustTarget(t, 0.5, 0.01)}
	window := NewSlidingWindow(
		clock,
		func() *CKMSQuantiles { return NewCKMSQuantiles(targets) },
		(*CKMSQuantiles).Insert,
		300,
		5,
	)

	for i := 0; i < 1000; i++ {
		window.Observe(float64(i))
	}
	require.InDelta(t, 500, window.Current().Get(0.5), 15)

	clock.Advance(301000)
	assert.True(t, math.IsNaN(window.Current().Get(0.5)))
}
