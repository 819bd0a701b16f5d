package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PinEvent is pushed to connected map views when the visible pin set
// changed, telling them to re-fetch.
type PinEvent struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	PinID     string `json:"pin_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// PinEventHub fans pin-change events out to subscribed WebSocket clients
type PinEventHub struct {
	mu          sync.RWMutex
	subscribers map[string]*websocket.Conn
}

// NewPinEventHub creates a new hub
func NewPinEventHub() *PinEventHub {
	return &PinEventHub{
		subscribers: make(map[string]*websocket.Conn),
	}
}

// Register registers a subscriber connection under its id
func (h *PinEventHub) Register(subscriberID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.subscribers[subscriberID]; ok {
		existing.Close()
	}
	h.subscribers[subscriberID] = conn

	log.Info().Str("subscriber_id", subscriberID).Msg("Map view subscribed")
}

// Unregister removes a subscriber connection
func (h *PinEventHub) Unregister(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.subscribers[subscriberID]; ok {
		conn.Close()
		delete(h.subscribers, subscriberID)
		log.Info().Str("subscriber_id", subscriberID).Msg("Map view unsubscribed")
	}
}

// SubscriberCount returns the number of connected map views
func (h *PinEventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// PinsChanged broadcasts a pin-change event to every subscriber. Writes that
// fail drop the subscriber.
func (h *PinEventHub) PinsChanged(action, pinID string) {
	event := PinEvent{
		Type:      "pins_changed",
		Action:    action,
		PinID:     pinID,
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal pin event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.subscribers {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("subscriber_id", id).Msg("Dropping dead subscriber")
			conn.Close()
			delete(h.subscribers, id)
		}
	}
}
