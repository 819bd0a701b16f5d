package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *PinEventHub, subscriberID string) (client *websocket.Conn, server *websocket.Conn, cleanup func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Register(subscriberID, conn)
		serverConns <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("server connection never registered")
	}

	return client, server, func() {
		client.Close()
		srv.Close()
	}
}

func TestHubBroadcastsPinEvents(t *testing.T) {
	hub := NewPinEventHub()
	client, _, cleanup := dialTestHub(t, hub, "viewer-1")
	defer cleanup()

	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	hub.PinsChanged("created", "pin-7")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event PinEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != "pins_changed" {
		t.Fatalf("type = %q, want pins_changed", event.Type)
	}
	if event.Action != "created" || event.PinID != "pin-7" {
		t.Fatalf("event = %+v", event)
	}
	if event.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestHubDropsDeadSubscribers(t *testing.T) {
	hub := NewPinEventHub()
	_, server, cleanup := dialTestHub(t, hub, "viewer-1")
	defer cleanup()

	server.Close()
	hub.PinsChanged("deleted", "pin-1")

	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected dead subscriber to be dropped, count = %d", hub.SubscriberCount())
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewPinEventHub()
	_, _, cleanup := dialTestHub(t, hub, "viewer-1")
	defer cleanup()

	hub.Unregister("viewer-1")
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}

	// Unknown ids are a no-op.
	hub.Unregister("viewer-9")
}
