package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func testClient(userID, role string) *Client {
	return &Client{
		UserID:   userID,
		UserRole: role,
		send:     make(chan []byte, 8),
	}
}

func waitConnected(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.IsUserConnected(userID) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client %s never registered", userID)
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	driver := testClient("driver-1", "driver")
	hub.register <- driver
	waitConnected(t, hub, "driver-1")

	hub.BroadcastToUser("driver-1", map[string]string{"type": "route_assigned"})

	select {
	case raw := <-driver.send:
		var msg map[string]string
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if msg["type"] != "route_assigned" {
			t.Fatalf("got type %q, want route_assigned", msg["type"])
		}
	case <-time.After(time.Second):
		t.Fatal("driver never received the broadcast")
	}
}

func TestHubBroadcastToRole(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	admin := testClient("admin-1", "admin")
	driver := testClient("driver-1", "driver")
	hub.register <- admin
	hub.register <- driver
	waitConnected(t, hub, "admin-1")
	waitConnected(t, hub, "driver-1")

	hub.BroadcastToRole("admin", map[string]string{"type": "dispatch_update"})

	select {
	case <-admin.send:
	case <-time.After(time.Second):
		t.Fatal("admin never received the role broadcast")
	}

	select {
	case raw := <-driver.send:
		t.Fatalf("driver should not receive admin broadcasts, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := testClient("driver-1", "driver")
	hub.register <- client
	waitConnected(t, hub, "driver-1")

	hub.unregister <- client

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !hub.IsUserConnected("driver-1") {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client still registered after unregister")
}
