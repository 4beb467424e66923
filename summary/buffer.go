package summary

import (
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/metricsafe-go/metricsafe/snapshot"
)

// The buffer's phase lives in the top bit of the state word; the low 63
// bits count append calls. An observer claims its observation slot and
// reads the phase in a single atomic add, so the OPEN -> COLLECTING
// transition can never lose an observation.
const collectingBit = uint64(1) << 63

// buffer coordinates observations with snapshots. While OPEN, observers
// perform updates inline. While COLLECTING, observations are queued and
// replayed after the snapshot, so that (count, sum, quantile state) are
// mutually consistent without observers ever blocking on a collector.
type buffer struct {
	runMu    sync.Mutex // at most one collect at a time
	appendMu sync.Mutex // guards queued
	state    atomic.Uint64
	queued   []float64
}

// append queues the value while a snapshot is being taken. It reports
// false when the buffer is OPEN, in which case the caller performs the
// update inline.
func (b *buffer) append(value float64) bool {
	if b.state.Add(1)&collectingBit == 0 {
		return false
	}
	b.appendMu.Lock()
	b.queued = append(b.queued, value)
	b.appendMu.Unlock()
	return true
}

// run switches the buffer to COLLECTING, waits until every observer that
// took the inline path has published its count increment, builds the
// snapshot from the now-stable state, reopens the buffer, and replays
// the queued observations through observe. Queued observations are
// reflected in subsequent snapshots; each observation lands in exactly
// one snapshot epoch.
func (b *buffer) run(
	complete func(expectedCount uint64) bool,
	createSnapshot func() *snapshot.SummaryDataPointSnapshot,
	observe func(float64),
) *snapshot.SummaryDataPointSnapshot {
	b.runMu.Lock()

	// Close the door. The low bits count every append call so far, and
	// each of those yields exactly one count increment: inline calls
	// directly, queued calls through a replay. Once the live count has
	// caught up, no observation is in flight anymore.
	expected := b.state.Add(collectingBit) &^ collectingBit
	for !complete(expected) {
		runtime.Gosched()
	}

	result := createSnapshot()

	// Reopen. Adding the bit a second time overflows it away and leaves
	// the low bits intact; their growth since the switch is the number of
	// queued observations to wait for, including appenders that claimed a
	// slot but have not stored their value yet.
	expectedQueued := int(b.state.Add(collectingBit)&^collectingBit - expected)
	var queued []float64
	for {
		b.appendMu.Lock()
		if len(b.queued) >= expectedQueued {
			queued = b.queued
			b.queued = nil
			b.appendMu.Unlock()
			break
		}
		b.appendMu.Unlock()
		runtime.Gosched()
	}
	b.runMu.Unlock()

	for _, value := range queued {
		observe(value)
	}
	return result
}
