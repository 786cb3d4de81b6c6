package analysis

import (
	"lod-engine/src/analysis/core"
	"lod-engine/src/models"
)

// -----------------------------------------------------------------------------

// ScalarField picks the buffer that drives extrema bucketing.
func ScalarField(fields map[string][]float64) string {
	if _, ok := fields[models.FieldValue]; ok {
		return models.FieldValue
	}
	if _, ok := fields[models.FieldClose]; ok {
		return models.FieldClose
	}
	return ""
}

// -----------------------------------------------------------------------------

// DecimateExtrema shrinks a scalar series to at most maxPoints samples while
// keeping every bucket's minimum and maximum.
//
// Inputs that already fit are returned as is. Otherwise the samples are split
// into maxPoints/2 contiguous buckets and each bucket emits its min and its max
// sample, in original index order. All other fields follow the chosen indices.
func DecimateExtrema(slice models.MSeriesSlice, field string, maxPoints int) models.MSeriesSlice {
	n := slice.Len()
	if maxPoints < 2 {
		maxPoints = 2
	}
	values, ok := slice.Fields[field]
	if n <= maxPoints || !ok {
		return slice
	}

	bucketCount := maxPoints / 2
	bucketSize := (n + bucketCount - 1) / bucketCount
	buckets := (n + bucketSize - 1) / bucketSize

	indices := make([]int, 0, buckets*2)
	for lo := 0; lo < n; lo += bucketSize {
		hi := lo + bucketSize
		if hi > n {
			hi = n
		}
		minIdx, maxIdx := core.BucketExtrema(values, lo, hi)
		if minIdx <= maxIdx {
			indices = append(indices, minIdx, maxIdx)
		} else {
			indices = append(indices, maxIdx, minIdx)
		}
	}

	return gather(slice, indices)
}

// -----------------------------------------------------------------------------

func gather(slice models.MSeriesSlice, indices []int) models.MSeriesSlice {
	times := make([]int64, len(indices))
	for i, idx := range indices {
		times[i] = slice.Times[idx]
	}
	fields := make(map[string][]float64, len(slice.Fields))
	for name, buf := range slice.Fields {
		out := make([]float64, len(indices))
		for i, idx := range indices {
			out[i] = buf[idx]
		}
		fields[name] = out
	}
	return models.MSeriesSlice{Times: times, Fields: fields, Offset: -1}
}
