package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Asserts that labels are sorted by name on construction.
func TestNewLabelsSortsByName(t *testing.T) {
	labels := NewLabels([]string{"path", "method"}, []string{"/", "GET"})

	assert.Equal(t, Labels{{Name: "method", Value: "GET"}, {Name: "path", Value: "/"}}, labels)

	value, ok := labels.Get("path")
	assert.True(t, ok)
	assert.Equal(t, "/", value)
	_, ok = labels.Get("status")
	assert.False(t, ok)
}

// Asserts that mismatched name/value slices are rejected.
func TestNewLabelsPanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() { NewLabels([]string{"a"}, nil) })
}

// Asserts that LabelsOf requires name/value pairs.
func TestLabelsOfPanicsOnOddArguments(t *testing.T) {
	assert.Panics(t, func() { LabelsOf("a", "1", "b") })
}

// Asserts lexicographic ordering on (name, value) pairs.
func TestLabelsCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        Labels
		b        Labels
		expected int
	}{
		{"equal", LabelsOf("a", "1"), LabelsOf("a", "1"), 0},
		{"by name", LabelsOf("a", "1"), LabelsOf("b", "1"), -1},
		{"by value", LabelsOf("a", "1"), LabelsOf("a", "2"), -1},
		{"prefix is smaller", LabelsOf("a", "1"), LabelsOf("a", "1", "b", "2"), -1},
		{"empty first", nil, LabelsOf("a", "1"), -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.expected == 0 {
				assert.Zero(t, tc.a.Compare(tc.b))
				assert.Zero(t, tc.b.Compare(tc.a))
			} else {
				assert.Negative(t, tc.a.Compare(tc.b))
				assert.Positive(t, tc.b.Compare(tc.a))
			}
		})
	}
}

// Asserts that a data point snapshot does not share state with its
// inputs or expose mutable state through accessors.
func TestSummaryDataPointSnapshotIsImmutable(t *testing.T) {
	quantiles := Quantiles{{Quantile: 0.5, Value: 10}}
	labels := LabelsOf("path", "/")
	point := NewSummaryDataPointSnapshot(3, 6.0, quantiles, labels, nil, 1000)

	// Mutating the input after construction must not show through
	quantiles[0].Value = 99
	assert.Equal(t, 10.0, point.Quantiles()[0].Value)

	// Mutating an accessor result must not change the snapshot
	point.Quantiles()[0].Value = 42
	point.Labels()[0].Value = "/changed"
	assert.Equal(t, 10.0, point.Quantiles()[0].Value)
	assert.Equal(t, Labels{{Name: "path", Value: "/"}}, point.Labels())

	assert.Equal(t, uint64(3), point.Count())
	assert.Equal(t, 6.0, point.Sum())
	assert.Equal(t, int64(1000), point.CreatedTimestampMillis())
	assert.Empty(t, point.Exemplars())
}

// Asserts that the scrape timestamp is caller-set and copy-on-write.
func TestSummaryDataPointSnapshotWithScrapeTimestamp(t *testing.T) {
	point := NewSummaryDataPointSnapshot(1, 1.0, nil, nil, nil, 1000)
	require.Equal(t, int64(0), point.ScrapeTimestampMillis())

	stamped := point.WithScrapeTimestamp(2000)
	assert.Equal(t, int64(2000), stamped.ScrapeTimestampMillis())
	assert.Equal(t, int64(0), point.ScrapeTimestampMillis())
	assert.Equal(t, point.Count(), stamped.Count())
}

// Asserts that the summary snapshot copies its data point list.
func TestSummarySnapshotCopiesDataPoints(t *testing.T) {
	points := []*SummaryDataPointSnapshot{NewSummaryDataPointSnapshot(1, 1.0, nil, nil, nil, 0)}
	result := NewSummarySnapshot(NewMetadata("x", "", ""), points)

	points[0] = nil
	require.Len(t, result.DataPoints(), 1)
	assert.NotNil(t, result.DataPoints()[0])
	assert.Equal(t, "x", result.Metadata().Name())
}
