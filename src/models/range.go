package models

// MTimeRange is an inclusive time interval in epoch milliseconds.
type MTimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// MIndexRange is an inclusive index span inside a snapshot.
type MIndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// -----------------------------------------------------------------------------

// Span returns End-Start
func (r MTimeRange) Span() int64 {
	return r.End - r.Start
}

// -----------------------------------------------------------------------------

// Contains reports whether other lies fully inside r
func (r MTimeRange) Contains(other MTimeRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// -----------------------------------------------------------------------------

func (r MTimeRange) ContainsTime(t int64) bool {
	return t >= r.Start && t <= r.End
}

// -----------------------------------------------------------------------------

func (r MTimeRange) Equal(other MTimeRange) bool {
	return r.Start == other.Start && r.End == other.End
}

// -----------------------------------------------------------------------------

// Expand widens the range by span*ratio on both sides.
func (r MTimeRange) Expand(ratio float64) MTimeRange {
	margin := int64(float64(r.Span()) * ratio)
	return MTimeRange{Start: r.Start - margin, End: r.End + margin}
}

// -----------------------------------------------------------------------------

// Intersect returns the overlap of both ranges, false when they are disjoint.
func (r MTimeRange) Intersect(other MTimeRange) (MTimeRange, bool) {
	start := r.Start
	if other.Start > start {
		start = other.Start
	}
	end := r.End
	if other.End < end {
		end = other.End
	}
	if start > end {
		return MTimeRange{}, false
	}
	return MTimeRange{Start: start, End: end}, true
}

// -----------------------------------------------------------------------------

// ClipTo caps the range end at cutoff. Returns false when the whole range lies after it.
func (r MTimeRange) ClipTo(cutoff *int64) (MTimeRange, bool) {
	if cutoff == nil {
		return r, true
	}
	if r.Start > *cutoff {
		return MTimeRange{}, false
	}
	if r.End > *cutoff {
		r.End = *cutoff
	}
	return r, true
}

// -----------------------------------------------------------------------------

// Len returns the number of indices in the span
func (r MIndexRange) Len() int {
	return r.End - r.Start + 1
}
