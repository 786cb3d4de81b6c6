package series

import (
	"sort"

	"lod-engine/src/models"
)

// Every constructor below returns a fresh snapshot and never writes into the
// buffers of prev, so readers holding an older version stay consistent.

// -----------------------------------------------------------------------------

// NewSnapshot builds version 1 of a series from bars sorted by time.
func NewSnapshot(id string, kind models.MSeriesKind, bars []models.MBar) *models.MSeriesSnapshot {
	s := build(id, kind, bars)
	s.Version = 1
	return s
}

// -----------------------------------------------------------------------------

func build(id string, kind models.MSeriesKind, bars []models.MBar) *models.MSeriesSnapshot {
	names := models.FieldsFor(kind)
	s := &models.MSeriesSnapshot{
		ID:     id,
		Kind:   kind,
		Times:  make([]int64, len(bars)),
		Fields: make(map[string][]float64, len(names)),
	}
	for _, name := range names {
		s.Fields[name] = make([]float64, len(bars))
	}
	for i, b := range bars {
		s.Times[i] = b.Time
		for _, name := range names {
			s.Fields[name][i] = b.FieldOf(name)
		}
	}
	return s
}

// -----------------------------------------------------------------------------

// Replace swaps the whole content of a series.
func Replace(prev *models.MSeriesSnapshot, bars []models.MBar) *models.MSeriesSnapshot {
	next := build(prev.ID, prev.Kind, bars)
	next.Version = prev.Version + 1
	return next
}

// -----------------------------------------------------------------------------

// Append concatenates bars after the current last sample.
func Append(prev *models.MSeriesSnapshot, bars []models.MBar) *models.MSeriesSnapshot {
	return concat(prev, build(prev.ID, prev.Kind, bars), false)
}

// -----------------------------------------------------------------------------

// Prepend concatenates bars before the current first sample.
func Prepend(prev *models.MSeriesSnapshot, bars []models.MBar) *models.MSeriesSnapshot {
	return concat(prev, build(prev.ID, prev.Kind, bars), true)
}

// -----------------------------------------------------------------------------

func concat(prev, extra *models.MSeriesSnapshot, before bool) *models.MSeriesSnapshot {
	first, second := prev, extra
	if before {
		first, second = extra, prev
	}
	n := first.Len() + second.Len()

	next := &models.MSeriesSnapshot{
		ID:      prev.ID,
		Kind:    prev.Kind,
		Times:   make([]int64, 0, n),
		Fields:  make(map[string][]float64, len(prev.Fields)),
		Version: prev.Version + 1,
	}
	next.Times = append(append(next.Times, first.Times...), second.Times...)
	for name := range prev.Fields {
		buf := make([]float64, 0, n)
		buf = append(buf, first.Fields[name]...)
		buf = append(buf, second.Fields[name]...)
		next.Fields[name] = buf
	}
	return next
}

// -----------------------------------------------------------------------------

// Patch overwrites values at timestamps already present. Bars with unknown
// timestamps are ignored, so the length never changes.
func Patch(prev *models.MSeriesSnapshot, bars []models.MBar) *models.MSeriesSnapshot {
	next := &models.MSeriesSnapshot{
		ID:      prev.ID,
		Kind:    prev.Kind,
		Times:   prev.Times,
		Fields:  make(map[string][]float64, len(prev.Fields)),
		Version: prev.Version + 1,
	}
	for name, buf := range prev.Fields {
		next.Fields[name] = append([]float64(nil), buf...)
	}
	for _, b := range bars {
		i := sort.Search(len(prev.Times), func(j int) bool { return prev.Times[j] >= b.Time })
		if i == len(prev.Times) || prev.Times[i] != b.Time {
			continue
		}
		for name := range next.Fields {
			next.Fields[name][i] = b.FieldOf(name)
		}
	}
	return next
}

// -----------------------------------------------------------------------------

// Merge folds loaded bars into a snapshot: older bars are prepended, newer
// bars appended and bars at known timestamps patched. The bool is false when
// nothing changed, in which case prev is returned.
func Merge(prev *models.MSeriesSnapshot, bars []models.MBar) (*models.MSeriesSnapshot, bool) {
	if len(bars) == 0 {
		return prev, false
	}
	sorted := append([]models.MBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	if prev.Len() == 0 {
		return Replace(prev, dedupe(sorted)), true
	}

	first, last := prev.Times[0], prev.Times[prev.Len()-1]
	var older, newer, overlap []models.MBar
	for _, b := range sorted {
		switch {
		case b.Time < first:
			older = append(older, b)
		case b.Time > last:
			newer = append(newer, b)
		default:
			overlap = append(overlap, b)
		}
	}

	next := prev
	if len(overlap) > 0 {
		next = Patch(next, overlap)
	}
	if len(older) > 0 {
		next = Prepend(next, dedupe(older))
	}
	if len(newer) > 0 {
		next = Append(next, dedupe(newer))
	}
	if next == prev {
		return prev, false
	}
	// several steps may have run; publish a single version bump
	next.Version = prev.Version + 1
	return next, true
}

// -----------------------------------------------------------------------------

// dedupe keeps the last bar per timestamp of a sorted list
func dedupe(bars []models.MBar) []models.MBar {
	out := bars[:0:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Time == b.Time {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// -----------------------------------------------------------------------------

// Extent returns [first, last] time of the snapshot, nil when empty.
func Extent(s *models.MSeriesSnapshot) *models.MTimeRange {
	if s.Len() == 0 {
		return nil
	}
	return &models.MTimeRange{Start: s.Times[0], End: s.Times[s.Len()-1]}
}

// -----------------------------------------------------------------------------

// BarAt reads row i back into a bar
func BarAt(s *models.MSeriesSnapshot, i int) models.MBar {
	b := models.MBar{Time: s.Times[i]}
	for name, buf := range s.Fields {
		v := buf[i]
		switch name {
		case models.FieldOpen:
			b.Open = v
		case models.FieldHigh:
			b.High = v
		case models.FieldLow:
			b.Low = v
		case models.FieldClose:
			b.Close = v
		case models.FieldVolume:
			b.Volume = v
		default:
			b.Value = v
		}
	}
	return b
}
