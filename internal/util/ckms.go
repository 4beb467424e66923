package util

import (
	"fmt"
	"math"
	"sort"

	"github.com/metricsafe-go/metricsafe"
)

// Size of the insertion buffer. Incoming values are batched and merged
// into the sample list once the buffer fills.
const insertBufferSize = 500

// Ceiling for the invariant function, keeping sample deltas within int
// range when no error-bounded target constrains a rank.
const maxInvariant = float64(math.MaxInt32)

// QuantileTarget is a φ-quantile tracked by a CKMSQuantiles estimator
// together with its allowed rank error ε. The special targets (0.0, 0.0)
// and (1.0, 0.0) request the exact minimum and maximum.
type QuantileTarget struct {
	phi     float64
	epsilon float64

	// Invariant coefficients, precomputed per target.
	u float64 // 2ε / (1 - φ)
	v float64 // 2ε / φ
}

// NewQuantileTarget creates a QuantileTarget, rejecting φ or ε outside
// [0, 1].
func NewQuantileTarget(phi, epsilon float64) (QuantileTarget, error) {
	if phi < 0 || phi > 1 || math.IsNaN(phi) {
		return QuantileTarget{}, fmt.Errorf("%w: quantile %v invalid: expected number between 0.0 and 1.0", metricsafe.ErrConfiguration, phi)
	}
	if epsilon < 0 || epsilon > 1 || math.IsNaN(epsilon) {
		return QuantileTarget{}, fmt.Errorf("%w: error %v invalid: expected number between 0.0 and 1.0", metricsafe.ErrConfiguration, epsilon)
	}
	return QuantileTarget{
		phi:     phi,
		epsilon: epsilon,
		u:       2 * epsilon / (1 - phi),
		v:       2 * epsilon / phi,
	}, nil
}

func (t QuantileTarget) Phi() float64     { return t.phi }
func (t QuantileTarget) Epsilon() float64 { return t.epsilon }

// A retained sample. g is the rank gap to the previous sample, delta the
// allowed rank-error slack.
type ckmsSample struct {
	value float64
	g     int
	delta int
}

// CKMSQuantiles is a streaming φ-quantile estimator after Cormode, Korn,
// Muthukrishnan and Srivastava ("Effective Computation of Biased
// Quantiles over Data Streams"), specialized for a fixed set of targeted
// quantiles. It keeps an ordered list of compressed rank samples whose
// size is sublinear in the number of observations.
//
// This type is not concurrency safe.
type CKMSQuantiles struct {
	targets     []QuantileTarget
	preserveMin bool

	// Mutable state
	samples   []ckmsSample
	n         int
	buffer    []float64
	bufferPos int
}

// NewCKMSQuantiles creates an estimator for the given targets. The
// targets may be empty, in which case Get returns NaN for every φ.
func NewCKMSQuantiles(targets []QuantileTarget) *CKMSQuantiles {
	preserveMin := false
	for _, target := range targets {
		if target.phi == 0 && target.epsilon == 0 {
			preserveMin = true
		}
	}
	return &CKMSQuantiles{
		targets:     append([]QuantileTarget(nil), targets...),
		preserveMin: preserveMin,
		buffer:      make([]float64, insertBufferSize),
	}
}

// Insert adds a value to the stream.
func (c *CKMSQuantiles) Insert(value float64) {
	c.buffer[c.bufferPos] = value
	c.bufferPos++
	if c.bufferPos == len(c.buffer) {
		c.flush()
	}
}

// Count returns the number of values inserted.
func (c *CKMSQuantiles) Count() int {
	return c.n + c.bufferPos
}

// Get returns the estimated value of the φ-quantile, or NaN if nothing
// has been inserted or no targets are configured. φ does not have to be
// one of the configured targets, but only configured targets carry an
// error guarantee.
func (c *CKMSQuantiles) Get(phi float64) float64 {
	c.flush()
	if len(c.targets) == 0 || len(c.samples) == 0 {
		return math.NaN()
	}
	if phi <= 0 {
		return c.samples[0].value
	}
	if phi >= 1 {
		return c.samples[len(c.samples)-1].value
	}

	desired := int(math.Ceil(phi * float64(c.n)))
	allowed := c.invariant(desired) / 2

	rank := 0
	prev := c.samples[0]
	for _, cur := range c.samples[1:] {
		rank += prev.g
		if float64(rank+cur.g+cur.delta) > float64(desired)+allowed {
			return prev.value
		}
		prev = cur
	}
	return prev.value
}

// invariant is the maximum allowed span g + delta at the given rank: the
// minimum over all error-bounded targets of their rank-error function.
// Exact targets (ε = 0) do not constrain ranks; they are preserved
// structurally instead.
func (c *CKMSQuantiles) invariant(rank int) float64 {
	result := maxInvariant
	for _, target := range c.targets {
		if target.epsilon == 0 {
			continue
		}
		var bound float64
		if float64(rank) >= math.Floor(target.phi*float64(c.n)) {
			bound = target.v * float64(rank)
		} else {
			bound = target.u * float64(c.n-rank)
		}
		if bound < result {
			result = bound
		}
	}
	return result
}

// flush drains the insertion buffer into the sample list and compresses.
func (c *CKMSQuantiles) flush() {
	if c.bufferPos == 0 {
		return
	}
	buffered := c.buffer[:c.bufferPos]
	sort.Float64s(buffered)
	c.insertBatch(buffered)
	c.bufferPos = 0
	c.compress()
}

// insertBatch merges a sorted batch into the sample list in one scan.
// New samples get g = 1 and delta = ⌊f(rank)⌋ - 1, except at the ends of
// the list where the exact endpoints must keep delta = 0.
func (c *CKMSQuantiles) insertBatch(sorted []float64) {
	merged := make([]ckmsSample, 0, len(c.samples)+len(sorted))
	next := 0
	rank := 0
	for _, value := range sorted {
		for next < len(c.samples) && c.samples[next].value <= value {
			rank += c.samples[next].g
			merged = append(merged, c.samples[next])
			next++
		}
		delta := 0
		if len(merged) > 0 && next < len(c.samples) {
			delta = int(math.Floor(c.invariant(rank))) - 1
			if delta < 0 {
				delta = 0
			}
		}
		merged = append(merged, ckmsSample{value: value, g: 1, delta: delta})
		rank++
		c.n++
	}
	merged = append(merged, c.samples[next:]...)
	c.samples = merged
}

// compress sweeps the sample list left to right, merging an adjacent
// pair into its right sample whenever the combined rank span still fits
// the invariant. The first sample is kept when an exact minimum target
// is configured; the last sample survives every merge, so the maximum is
// always retained.
func (c *CKMSQuantiles) compress() {
	if len(c.samples) < 2 {
		return
	}
	out := c.samples[:0]
	rank := 0
	cur := c.samples[0]
	for i := 1; i < len(c.samples); i++ {
		next := c.samples[i]
		protected := c.preserveMin && len(out) == 0
		if !protected && float64(cur.g+next.g+next.delta) <= c.invariant(rank+cur.g+next.g) {
			next.g += cur.g
		} else {
			out = append(out, cur)
			rank += cur.g
		}
		cur = next
	}
	c.samples = append(out, cur)
}
