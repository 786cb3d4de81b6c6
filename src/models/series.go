package models

// MSeriesKind selects the decimator and the LOD policy of a series.
type MSeriesKind string

const (
	SeriesLine      MSeriesKind = "line"
	SeriesArea      MSeriesKind = "area"
	SeriesBaseline  MSeriesKind = "baseline"
	SeriesHistogram MSeriesKind = "histogram"
	SeriesCandles   MSeriesKind = "candles"
)

// Field names of the columnar buffers
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
	FieldValue  = "value"
)

// -----------------------------------------------------------------------------

// MSeriesSnapshot is the columnar data of one series at a given version.
// Snapshots are never mutated once published; every change produces a new value.
type MSeriesSnapshot struct {
	ID      string               `json:"id"`
	Kind    MSeriesKind          `json:"kind"`
	Times   []int64              `json:"times"`
	Fields  map[string][]float64 `json:"fields"`
	Version uint64               `json:"version"`
}

// Len returns the number of samples
func (s *MSeriesSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Times)
}

// -----------------------------------------------------------------------------

// MSeriesSlice is a zero-copy view over a contiguous part of a snapshot.
type MSeriesSlice struct {
	Times  []int64
	Fields map[string][]float64
	Offset int // index of Times[0] in the source snapshot
}

func (s MSeriesSlice) Len() int {
	return len(s.Times)
}

// -----------------------------------------------------------------------------

// MBar is a single row as stored and loaded by the data collaborators.
type MBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Value  float64 `json:"value"`
}

// FieldsFor lists the buffers a series kind carries.
func FieldsFor(kind MSeriesKind) []string {
	if kind == SeriesCandles {
		return []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}
	}
	return []string{FieldValue}
}

// -----------------------------------------------------------------------------

// FieldOf reads one named field of a bar
func (b MBar) FieldOf(name string) float64 {
	switch name {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	case FieldVolume:
		return b.Volume
	default:
		return b.Value
	}
}
