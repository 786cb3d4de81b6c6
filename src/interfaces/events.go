package interfaces

import "lod-engine/src/models"

// -----------------------------------------------------------------------------
// IEventSink receives the engine's outgoing events. Implementations must not
// block: the engine calls them while holding its lock.
// -----------------------------------------------------------------------------

type IEventSink interface {
	EmitDataWindowRequest(req models.MDataWindowRequest)
	EmitDiagnostic(diag models.MDiagnostic)
}
