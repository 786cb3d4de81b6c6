package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger pushes rendered output to external listeners (WebSocket hub).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a frame or diagnostic to every interested client
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
