package analysis

import (
	"lod-engine/src/analysis/core"
	"lod-engine/src/models"
)

// -----------------------------------------------------------------------------

// AggregateOHLC re-buckets candles into at most maxPoints bars, the same way
// 1-minute candles roll up into 5-minute ones: open of the first, close of the
// last, extreme high and low, summed volume, time of the first sample.
func AggregateOHLC(slice models.MSeriesSlice, maxPoints int) models.MSeriesSlice {
	n := slice.Len()
	if maxPoints < 1 {
		maxPoints = 1
	}
	if n <= maxPoints {
		return slice
	}

	open, okO := slice.Fields[models.FieldOpen]
	high, okH := slice.Fields[models.FieldHigh]
	low, okL := slice.Fields[models.FieldLow]
	closes, okC := slice.Fields[models.FieldClose]
	if !okO || !okH || !okL || !okC {
		return slice
	}
	volume := slice.Fields[models.FieldVolume]

	bucketSize := (n + maxPoints - 1) / maxPoints
	buckets := (n + bucketSize - 1) / bucketSize

	times := make([]int64, 0, buckets)
	outOpen := make([]float64, 0, buckets)
	outHigh := make([]float64, 0, buckets)
	outLow := make([]float64, 0, buckets)
	outClose := make([]float64, 0, buckets)
	outVolume := make([]float64, 0, buckets)

	for lo := 0; lo < n; lo += bucketSize {
		hi := lo + bucketSize
		if hi > n {
			hi = n
		}
		bar := core.BucketOHLCV(open, high, low, closes, volume, lo, hi)
		times = append(times, slice.Times[lo])
		outOpen = append(outOpen, bar.Open)
		outHigh = append(outHigh, bar.High)
		outLow = append(outLow, bar.Low)
		outClose = append(outClose, bar.Close)
		outVolume = append(outVolume, bar.Volume)
	}

	return models.MSeriesSlice{
		Times: times,
		Fields: map[string][]float64{
			models.FieldOpen:   outOpen,
			models.FieldHigh:   outHigh,
			models.FieldLow:    outLow,
			models.FieldClose:  outClose,
			models.FieldVolume: outVolume,
		},
		Offset: -1,
	}
}

// -----------------------------------------------------------------------------

// Decimate dispatches on the series kind
func Decimate(kind models.MSeriesKind, slice models.MSeriesSlice, maxPoints int) models.MSeriesSlice {
	if kind == models.SeriesCandles {
		return AggregateOHLC(slice, maxPoints)
	}
	return DecimateExtrema(slice, ScalarField(slice.Fields), maxPoints)
}
