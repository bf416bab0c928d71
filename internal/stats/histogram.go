package stats

import (
	"math"
	"sort"
	"sync"
)

// Histogram is a fixed-precision, log-linear-bucketed duration histogram
// in the spirit of HdrHistogram: it records nanosecond durations with a
// bounded relative error (2 significant figures, matching spec §4.B),
// saturates recorded values at the configured maximum rather than
// growing unbounded, and separately tracks the single highest outlier
// above that maximum so the client can still report it even though it
// isn't represented in the bucket counts.
//
// No HdrHistogram implementation exists anywhere in this module's
// reference corpus — this is a from-scratch, narrowly
// scoped reimplementation of just the properties spec §4.B and §6.2
// require: percentile query, saturating record, and a highest-outlier
// side channel, not a general-purpose port of the C/Java algorithm.
type Histogram struct {
	mu sync.Mutex

	sigFigs  int
	maxValue uint64

	// buckets[i] counts values whose bucketed representative is
	// bucketBounds[i]. Bucket boundaries grow geometrically at a rate
	// set by sigFigs so that relative error stays within 10^-sigFigs.
	bucketBounds []uint64
	buckets      []uint64

	highOutliers   uint64 // count of recordings above maxValue
	highestOutlier uint64 // largest single recorded value above maxValue (0 if none)
	totalCount     uint64
}

// NewHistogram creates a histogram covering [0, maxValue] at the given
// number of significant figures (spec §4.B uses 2).
func NewHistogram(maxValue uint64, sigFigs int) *Histogram {
	bounds := bucketBoundaries(maxValue, sigFigs)
	return &Histogram{
		sigFigs:      sigFigs,
		maxValue:     maxValue,
		bucketBounds: bounds,
		buckets:      make([]uint64, len(bounds)),
	}
}

func bucketBoundaries(maxValue uint64, sigFigs int) []uint64 {
	if maxValue == 0 {
		maxValue = 1
	}
	growth := math.Pow(10, -float64(sigFigs))
	bounds := []uint64{0}
	v := 1.0
	for uint64(v) < maxValue {
		bounds = append(bounds, uint64(v))
		v += math.Max(1, v*growth)
	}
	bounds = append(bounds, maxValue)
	return bounds
}

// Record saturates at maxValue for bucket placement; a value above
// maxValue is also counted in highOutliers and kept as highestOutlier
// when it is the largest such value so far.
func (h *Histogram) Record(nanos uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCount++

	v := nanos
	if v > h.maxValue {
		h.highOutliers++
		if nanos > h.highestOutlier {
			h.highestOutlier = nanos
		}
		v = h.maxValue
	}

	idx := sort.Search(len(h.bucketBounds), func(i int) bool { return h.bucketBounds[i] >= v })
	if idx >= len(h.buckets) {
		idx = len(h.buckets) - 1
	}
	h.buckets[idx]++
}

// Snapshot captures the histogram's state for wire transmission: the
// raw bucket counts (the "binary" HdrHistogram-style representation is
// approximated here as the bucket/count pairs themselves — see
// wire encoding in proto/), max_value, high_outliers count, and the
// single highest outlier value.
type Snapshot struct {
	Buckets        []uint64
	BucketBounds   []uint64
	MaxValue       uint64
	HighOutliers   uint64
	HighestOutlier uint64
	TotalCount     uint64
}

func (h *Histogram) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	buckets := make([]uint64, len(h.buckets))
	copy(buckets, h.buckets)
	bounds := make([]uint64, len(h.bucketBounds))
	copy(bounds, h.bucketBounds)

	return Snapshot{
		Buckets:        buckets,
		BucketBounds:   bounds,
		MaxValue:       h.maxValue,
		HighOutliers:   h.highOutliers,
		HighestOutlier: h.highestOutlier,
		TotalCount:     h.totalCount,
	}
}

// Percentile returns an estimate of the p-th percentile (0..100) nanosecond
// duration, derived from bucket counts. Used by linters and by the
// client's detail view.
func (s Snapshot) Percentile(p float64) uint64 {
	if s.TotalCount == 0 {
		return 0
	}
	target := uint64(math.Ceil(p / 100 * float64(s.TotalCount)))
	var cum uint64
	for i, c := range s.Buckets {
		cum += c
		if cum >= target {
			return s.BucketBounds[i]
		}
	}
	if s.HighestOutlier > 0 {
		return s.HighestOutlier
	}
	return s.MaxValue
}
