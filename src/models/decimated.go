package models

// MDecimatedSeries is the bounded output handed to the renderer.
// Buffers may alias the snapshot and are shared by the caches: treat as read-only.
type MDecimatedSeries struct {
	SeriesID    string               `json:"series_id"`
	Kind        MSeriesKind          `json:"kind"`
	Version     uint64               `json:"version"`
	Range       MTimeRange           `json:"range"`
	Level       MLodLevel            `json:"level"`
	MaxPoints   int                  `json:"max_points"`
	SourceCount int                  `json:"source_count"`
	Times       []int64              `json:"times"`
	Fields      map[string][]float64 `json:"fields"`
}

func (d *MDecimatedSeries) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Times)
}
