package cache

import (
	"strconv"
	"strings"

	"lod-engine/src/models"
)

// Key identifies one decimated output. Two keys are equal exactly when the
// output would be identical, so a version bump, a moved render window or a
// new replay cutoff all miss without any explicit invalidation.
type Key struct {
	SeriesID   string
	Version    uint64
	RangeStart int64
	RangeEnd   int64
	MaxPoints  int
	HasCutoff  bool
	Cutoff     int64
}

// -----------------------------------------------------------------------------

// NewKey builds a key; cutoff nil means no replay clipping
func NewKey(seriesID string, version uint64, r models.MTimeRange, maxPoints int, cutoff *int64) Key {
	k := Key{
		SeriesID:   seriesID,
		Version:    version,
		RangeStart: r.Start,
		RangeEnd:   r.End,
		MaxPoints:  maxPoints,
	}
	if cutoff != nil {
		k.HasCutoff = true
		k.Cutoff = *cutoff
	}
	return k
}

// -----------------------------------------------------------------------------

// String renders seriesId|version|rangeStart|rangeEnd|maxPoints|cutoffOrNone
func (k Key) String() string {
	var b strings.Builder
	b.Grow(len(k.SeriesID) + 64)
	b.WriteString(k.SeriesID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(k.Version, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(k.RangeStart, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(k.RangeEnd, 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(k.MaxPoints))
	b.WriteByte('|')
	if k.HasCutoff {
		b.WriteString(strconv.FormatInt(k.Cutoff, 10))
	} else {
		b.WriteString("none")
	}
	return b.String()
}
