package core

// -----------------------------------------------------------------------------

// BucketExtrema returns the indices of the minimum and maximum of values[lo:hi].
// The first occurrence wins on ties.
func BucketExtrema(values []float64, lo, hi int) (int, int) {
	minIdx, maxIdx := lo, lo
	for i := lo + 1; i < hi; i++ {
		v := values[i]
		if v < values[minIdx] {
			minIdx = i
		}
		if v > values[maxIdx] {
			maxIdx = i
		}
	}
	return minIdx, maxIdx
}

// -----------------------------------------------------------------------------

// OHLCV is one aggregated bucket
type OHLCV struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// -----------------------------------------------------------------------------

// BucketOHLCV aggregates rows [lo, hi) of the candle buffers.
// volume may be nil, in which case the bucket volume is 0.
func BucketOHLCV(open, high, low, close, volume []float64, lo, hi int) OHLCV {
	out := OHLCV{
		Open:  open[lo],
		High:  high[lo],
		Low:   low[lo],
		Close: close[hi-1],
	}
	for i := lo; i < hi; i++ {
		if high[i] > out.High {
			out.High = high[i]
		}
		if low[i] < out.Low {
			out.Low = low[i]
		}
		if volume != nil {
			out.Volume += volume[i]
		}
	}
	return out
}
