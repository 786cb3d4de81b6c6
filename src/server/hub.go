package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lod-engine/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			s.clientsMu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientsMu.Unlock()
			return

		case client := <-s.register:
			s.clientsMu.Lock()
			s.clients[client] = struct{}{}
			s.clientsMu.Unlock()

		case client := <-s.unregister:
			s.clientsMu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientsMu.Unlock()

		case message := <-s.broadcast:
			s.fanOut(message)
		}
	}
}

// fanOut sends frames to the subscribers of their pane and diagnostics to everyone.
func (s *APIServer) fanOut(message interface{}) {
	paneID := ""
	if f, ok := message.(models.MRenderFrame); ok && f.Type == frameType {
		paneID = f.PaneID
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		if paneID != "" && !client.subscribed(paneID) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Client too slow, disconnect to prevent Hub blocking
			delete(s.clients, client)
			close(client.send)
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a frame or a diagnostic. Never blocks: a full queue drops the message.
func (s *APIServer) Broadcast(message interface{}) {
	switch m := message.(type) {
	case models.MRenderFrame:
	case *models.MRenderFrame:
		message = *m
	case models.MDiagnostic:
		message = models.MRenderFrame{Type: diagnosticType, Diagnostic: &m, Timestamp: m.Timestamp.UnixMilli()}
	default:
		s.Logger.Info("Broadcast expected a frame or a diagnostic, got %s", describe(message))
		return
	}

	select {
	case s.broadcast <- message:
	default:
		s.Metrics.EventDropped()
		s.Logger.Warning("Broadcast queue full, dropping message")
	}
}

// -----------------------------------------------------------------------------

// ForwardDiagnostics pushes engine diagnostics to every client until ctx ends.
func (s *APIServer) ForwardDiagnostics(ctx context.Context, diagnostics <-chan models.MDiagnostic) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-diagnostics:
			if !ok {
				return
			}
			s.Broadcast(d)
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send:  make(chan interface{}, 256),
		panes: make(map[string]bool),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case "subscribe":
		client.subscribe(cmd.Panes)
		// current state of each pane, straight to this client
		for _, p := range cmd.Panes {
			client.trySend(models.MRenderFrame{
				Type:      frameType,
				PaneID:    p,
				Series:    s.Engine.RenderPane(p),
				Timestamp: time.Now().UnixMilli(),
			})
		}

	case "visible":
		r, err := checkedRange(cmd.Start, cmd.End)
		if err != nil {
			s.Logger.Info("Ignoring visible command: %v", err)
			return
		}
		pane := cmd.PaneID
		if pane == "" {
			pane = defaultPane
		}
		s.Engine.SetVisibleRange(pane, r)
		s.pushPane(pane)
	}
}
