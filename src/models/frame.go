package models

// -----------------------------------------------------------------------------
// WebSocket messages
// -----------------------------------------------------------------------------

// MRenderFrame is pushed to subscribers after a pane is re-rendered.
type MRenderFrame struct {
	Type       string              `json:"type"` // "FRAME" or "DIAGNOSTIC"
	PaneID     string              `json:"pane_id,omitempty"`
	Series     []*MDecimatedSeries `json:"series,omitempty"`
	Diagnostic *MDiagnostic        `json:"diagnostic,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// MSubscribeCommand for client messages
type MSubscribeCommand struct {
	Command string   `json:"command"` // "subscribe" or "visible"
	Panes   []string `json:"panes"`
	PaneID  string   `json:"pane_id"`
	Start   int64    `json:"start"`
	End     int64    `json:"end"`
}
