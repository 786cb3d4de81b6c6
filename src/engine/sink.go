package engine

import (
	"sync/atomic"

	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/models"
)

// DefaultEventBuffer is the capacity of each ChannelSink channel
const DefaultEventBuffer = 64

// -----------------------------------------------------------------------------
// ChannelSink delivers engine events on buffered channels. Sends never block:
// when a consumer falls behind the event is dropped and counted.
// -----------------------------------------------------------------------------

type ChannelSink struct {
	Requests    chan models.MDataWindowRequest
	Diagnostics chan models.MDiagnostic
	Logger      *logger.Logger
	metrics     *metrics.Metrics
	dropped     atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewChannelSink(buffer int, m *metrics.Metrics, log *logger.Logger) *ChannelSink {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	if log == nil {
		log = logger.NewLogger(nil, "EventSink")
	}
	return &ChannelSink{
		Requests:    make(chan models.MDataWindowRequest, buffer),
		Diagnostics: make(chan models.MDiagnostic, buffer),
		Logger:      log,
		metrics:     m,
	}
}

// -----------------------------------------------------------------------------

func (s *ChannelSink) EmitDataWindowRequest(req models.MDataWindowRequest) {
	select {
	case s.Requests <- req:
	default:
		s.drop("data window request for pane " + req.PaneID)
	}
}

// -----------------------------------------------------------------------------

func (s *ChannelSink) EmitDiagnostic(diag models.MDiagnostic) {
	select {
	case s.Diagnostics <- diag:
	default:
		s.drop("diagnostic " + diag.Code)
	}
}

func (s *ChannelSink) drop(what string) {
	s.dropped.Add(1)
	s.metrics.EventDropped()
	s.Logger.Warning("Event channel full, dropped %s", what)
}

// -----------------------------------------------------------------------------

// Dropped returns how many events were discarded
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}
