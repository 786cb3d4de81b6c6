package analysis

import (
	"testing"

	"lod-engine/src/models"
)

func candleSlice(n int, withVolume bool) models.MSeriesSlice {
	s := models.MSeriesSlice{Fields: map[string][]float64{}}
	var open, high, low, closes, volume []float64
	for i := 0; i < n; i++ {
		base := float64(100 + i)
		s.Times = append(s.Times, int64(i*60000))
		open = append(open, base)
		high = append(high, base+float64(i%3)+1)
		low = append(low, base-float64(i%4)-1)
		closes = append(closes, base+0.5)
		volume = append(volume, float64(10*(i+1)))
	}
	s.Fields[models.FieldOpen] = open
	s.Fields[models.FieldHigh] = high
	s.Fields[models.FieldLow] = low
	s.Fields[models.FieldClose] = closes
	if withVolume {
		s.Fields[models.FieldVolume] = volume
	}
	return s
}

func TestAggregateOHLC_TenBarsToTwo(t *testing.T) {
	in := candleSlice(10, true)
	out := AggregateOHLC(in, 2)
	if out.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", out.Len())
	}

	for b := 0; b < 2; b++ {
		lo, hi := b*5, b*5+5
		wantHigh, wantLow, wantVol := in.Fields[models.FieldHigh][lo], in.Fields[models.FieldLow][lo], 0.0
		for i := lo; i < hi; i++ {
			if in.Fields[models.FieldHigh][i] > wantHigh {
				wantHigh = in.Fields[models.FieldHigh][i]
			}
			if in.Fields[models.FieldLow][i] < wantLow {
				wantLow = in.Fields[models.FieldLow][i]
			}
			wantVol += in.Fields[models.FieldVolume][i]
		}
		if got := out.Fields[models.FieldOpen][b]; got != in.Fields[models.FieldOpen][lo] {
			t.Errorf("bar %d open: got %f", b, got)
		}
		if got := out.Fields[models.FieldClose][b]; got != in.Fields[models.FieldClose][hi-1] {
			t.Errorf("bar %d close: got %f", b, got)
		}
		if got := out.Fields[models.FieldHigh][b]; got != wantHigh {
			t.Errorf("bar %d high: got %f want %f", b, got, wantHigh)
		}
		if got := out.Fields[models.FieldLow][b]; got != wantLow {
			t.Errorf("bar %d low: got %f want %f", b, got, wantLow)
		}
		if got := out.Fields[models.FieldVolume][b]; got != wantVol {
			t.Errorf("bar %d volume: got %f want %f", b, got, wantVol)
		}
		if out.Times[b] != in.Times[lo] {
			t.Errorf("bar %d time: got %d", b, out.Times[b])
		}
	}
}

func TestAggregateOHLC_NoVolume(t *testing.T) {
	out := AggregateOHLC(candleSlice(9, false), 3)
	if out.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", out.Len())
	}
	for i, v := range out.Fields[models.FieldVolume] {
		if v != 0 {
			t.Errorf("bar %d: expected zero volume, got %f", i, v)
		}
	}
}

func TestAggregateOHLC_UnevenBuckets(t *testing.T) {
	out := AggregateOHLC(candleSlice(11, true), 4)
	// bucket size ceil(11/4)=3 gives 4 buckets, the last one with 2 bars
	if out.Len() != 4 {
		t.Fatalf("expected 4 bars, got %d", out.Len())
	}
	if out.Times[3] != 9*60000 {
		t.Errorf("expected last bucket to start at bar 9, got %d", out.Times[3])
	}
}

func TestAggregateOHLC_SmallInputUnchanged(t *testing.T) {
	in := candleSlice(4, true)
	out := AggregateOHLC(in, 4)
	if &out.Times[0] != &in.Times[0] {
		t.Fatal("expected input returned untouched")
	}
}
