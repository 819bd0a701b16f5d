package handlers

import (
	"net/http"

	"map-pin-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler subscribes map views to pin-change events
type WebSocketHandler struct {
	hub *services.PinEventHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.PinEventHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Subscribe handles GET /ws. The pin list is public, so subscribing to
// change events is too; the stream carries no data beyond "re-fetch".
func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	subscriberID := uuid.New().String()
	h.hub.Register(subscriberID, conn)
	defer h.hub.Unregister(subscriberID)

	// Drain incoming frames; the stream is server-to-client only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("subscriber_id", subscriberID).Msg("WebSocket error")
			}
			return
		}
	}
}
