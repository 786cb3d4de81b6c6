package models

import "time"

// Diagnostic codes
const (
	DiagLodLevelChanged      = "lod.level.changed"
	DiagDataWindowIncomplete = "data.window.incomplete"
)

// Diagnostic severities
const (
	SeverityInfo = "info"
	SeverityWarn = "warn"
)

// MDataWindowRequest asks the data-loading collaborator for more raw data.
type MDataWindowRequest struct {
	ID            string     `json:"id"`
	PaneID        string     `json:"pane_id"`
	Range         MTimeRange `json:"range"`
	PrefetchRatio float64    `json:"prefetch_ratio"`
	RequestedAt   time.Time  `json:"requested_at"`
}

// MDiagnostic is an informational or warning event.
type MDiagnostic struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
