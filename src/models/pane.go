package models

// MPaneWindowState is the windowing state of one chart pane.
// Optional values are nil pointers.
type MPaneWindowState struct {
	PaneID                  string      `json:"pane_id"`
	Series                  []string    `json:"series"`
	WidthPx                 int         `json:"width_px"`
	VisibleRange            *MTimeRange `json:"visible_range,omitempty"`
	RenderWindow            *MTimeRange `json:"render_window,omitempty"`
	BaseSpan                int64       `json:"base_span"`
	DataWindowCoverage      *MTimeRange `json:"data_window_coverage,omitempty"`
	PendingDataWindow       *MTimeRange `json:"pending_data_window,omitempty"`
	LastRequestedDataWindow *MTimeRange `json:"last_requested_data_window,omitempty"`
	LastIncompleteWarning   *MTimeRange `json:"-"`
}
