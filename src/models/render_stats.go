package models

// MRenderStats is a point-in-time copy of the engine counters.
type MRenderStats struct {
	Tier1Hits          uint64  `json:"tier1_hits"`
	Tier2Hits          uint64  `json:"tier2_hits"`
	Misses             uint64  `json:"misses"`
	Evictions          uint64  `json:"evictions"`
	GlobalEntries      int     `json:"global_entries"`
	DataWindowRequests uint64  `json:"data_window_requests"`
	Diagnostics        uint64  `json:"diagnostics"`
	DroppedEvents      uint64  `json:"dropped_events"`
	Frames             uint64  `json:"frames"`
	FramesOverBudget   uint64  `json:"frames_over_budget"`
	RecentOverBudget   int     `json:"recent_over_budget"` // within the sampled frames
	FrameMeanMs        float64 `json:"frame_mean_ms"`
	FrameStdMs         float64 `json:"frame_std_ms"`
	FrameMaxMs         float64 `json:"frame_max_ms"`
	SeriesCount        int     `json:"series_count"`
	TotalPoints        int     `json:"total_points"`
}
