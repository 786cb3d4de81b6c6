package analysis

import (
	"sort"

	"lod-engine/src/models"
)

// Sides for SearchSorted
const (
	SideLeft  = "left"
	SideRight = "right"
)

// -----------------------------------------------------------------------------

// SearchSorted returns the insertion point of value in the sorted times.
// "left" gives the first index with times[i] >= value (lower bound),
// "right" the first index with times[i] > value (upper bound).
func SearchSorted(times []int64, value int64, side string) int {
	if side == SideRight {
		return sort.Search(len(times), func(i int) bool {
			return times[i] > value
		})
	}
	return sort.Search(len(times), func(i int) bool {
		return times[i] >= value
	})
}

// -----------------------------------------------------------------------------

// FindIndexRange maps a time range onto the inclusive index span covering it.
// Returns false when the range does not overlap any sample.
func FindIndexRange(times []int64, r models.MTimeRange) (models.MIndexRange, bool) {
	if len(times) == 0 || r.End < r.Start {
		return models.MIndexRange{}, false
	}
	start := SearchSorted(times, r.Start, SideLeft)
	end := SearchSorted(times, r.End, SideRight) - 1
	if start >= len(times) || end < 0 || start > end {
		return models.MIndexRange{}, false
	}
	return models.MIndexRange{Start: start, End: end}, true
}

// -----------------------------------------------------------------------------

// NearestIndex returns the index whose time is closest to target.
// With a cutoff, only samples at or before the cutoff are candidates.
// On equal distance the left neighbour wins.
func NearestIndex(times []int64, target int64, cutoff *int64) (int, bool) {
	limit := len(times)
	if cutoff != nil {
		limit = SearchSorted(times, *cutoff, SideRight)
	}
	if limit == 0 {
		return 0, false
	}

	i := SearchSorted(times[:limit], target, SideLeft)
	if i == 0 {
		return 0, true
	}
	if i == limit {
		return limit - 1, true
	}

	left, right := i-1, i
	if target-times[left] <= times[right]-target {
		return left, true
	}
	return right, true
}

// -----------------------------------------------------------------------------

// SliceSnapshot returns a zero-copy view of the samples inside r.
func SliceSnapshot(snapshot *models.MSeriesSnapshot, r models.MTimeRange) (models.MSeriesSlice, bool) {
	if snapshot.Len() == 0 {
		return models.MSeriesSlice{}, false
	}
	span, ok := FindIndexRange(snapshot.Times, r)
	if !ok {
		return models.MSeriesSlice{}, false
	}
	return SliceIndices(snapshot, span), true
}

// -----------------------------------------------------------------------------

// SliceIndices sub-slices every buffer of the snapshot to span
func SliceIndices(snapshot *models.MSeriesSnapshot, span models.MIndexRange) models.MSeriesSlice {
	fields := make(map[string][]float64, len(snapshot.Fields))
	for name, buf := range snapshot.Fields {
		fields[name] = buf[span.Start : span.End+1]
	}
	return models.MSeriesSlice{
		Times:  snapshot.Times[span.Start : span.End+1],
		Fields: fields,
		Offset: span.Start,
	}
}

// -----------------------------------------------------------------------------

// CountInRange returns how many samples fall inside r without building a slice.
func CountInRange(times []int64, r models.MTimeRange) int {
	span, ok := FindIndexRange(times, r)
	if !ok {
		return 0
	}
	return span.Len()
}
