package server

import (
	"sync"
	"time"

	"lod-engine/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // commands are small
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	hub   *APIServer
	conn  *websocket.Conn
	send  chan interface{}
	panes map[string]bool // empty means every pane
	mu    sync.RWMutex
}

// -----------------------------------------------------------------------------

func (c *Client) subscribe(panes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range panes {
		c.panes[p] = true
	}
}

func (c *Client) subscribed(paneID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.panes) == 0 || c.panes[paneID]
}

// trySend queues a direct reply. Holding the hub lock keeps the channel from
// being closed underneath us.
func (c *Client) trySend(message interface{}) {
	c.hub.clientsMu.RLock()
	defer c.hub.clientsMu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.Logger.Debug("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client. Frames still queued for the same pane
// are superseded by the newest one; diagnostics are always delivered.
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			batch, open := c.drain(message)
			for _, m := range batch {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(m); err != nil {
					c.hub.Logger.Info("Write error: %v", err)
					return
				}
			}
			if !ok || !open {
				// Hub closed the channel
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// drain collects first and whatever is already queued behind it, keeping only
// the latest frame of each pane. open is false once the channel is closed.
func (c *Client) drain(first interface{}) (batch []interface{}, open bool) {
	latest := make(map[string]int)
	add := func(m interface{}) {
		if f, ok := m.(models.MRenderFrame); ok && f.Type == frameType {
			if i, seen := latest[f.PaneID]; seen {
				batch[i] = m
				return
			}
			latest[f.PaneID] = len(batch)
		}
		batch = append(batch, m)
	}

	if first != nil {
		add(first)
	}
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return batch, false
			}
			add(m)
		default:
			return batch, true
		}
	}
}
