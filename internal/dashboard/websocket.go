package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader converts HTTP requests to websocket connections.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Run sends each broadcast event to all connected clients until ctx is
// done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				if err := h.write(client, msg); err != nil {
					h.logger.Debug("Error sending to websocket client",
						zap.String("remote", client.RemoteAddr().String()),
						zap.Error(err),
					)
					// Remove client if sending fails.
					delete(h.clients, client)
					client.Close()
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// ServeWS handles websocket connections for real-time updates. A new client
// first receives the latest update.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	latest, err := h.Latest().Marshal()
	if err != nil {
		h.logger.Error("Failed to encode latest update", zap.Error(err))
		return
	}

	// Register this client for broadcasts.
	h.clientsMu.Lock()
	if err := h.write(conn, latest); err != nil {
		h.clientsMu.Unlock()
		return
	}
	h.clients[conn] = true
	h.clientsMu.Unlock()

	h.logger.Info("Websocket connection established",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", h.Clients()),
	)

	// Keep the connection open; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("Websocket connection closed", zap.String("remote", conn.RemoteAddr().String()))
			h.clientsMu.Lock()
			delete(h.clients, conn)
			h.clientsMu.Unlock()
			return
		}
	}
}

// write must be called with clientsMu held.
func (h *Hub) write(conn *websocket.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
}
