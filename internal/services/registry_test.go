package services

import (
	"fmt"
	"sync"
	"testing"

	"teachback/internal/models"
)

func newTestConn(userID, connID string) *models.UserConnection {
	return &models.UserConnection{
		ConnID:    connID,
		UserID:    userID,
		WriteChan: make(chan models.ServerMessage, 10),
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewConnectionRegistry()

	conn := newTestConn("alice", "conn-1")
	registry.Register(conn)

	got, exists := registry.Lookup("alice")
	if !exists {
		t.Fatal("Expected connection for alice")
	}
	if got.ConnID != "conn-1" {
		t.Errorf("Expected conn-1, got %s", got.ConnID)
	}

	if _, exists := registry.Lookup("bob"); exists {
		t.Error("Expected no connection for bob")
	}
}

func TestRegistry_LastConnectWins(t *testing.T) {
	registry := NewConnectionRegistry()

	registry.Register(newTestConn("alice", "conn-1"))
	registry.Register(newTestConn("alice", "conn-2"))

	got, exists := registry.Lookup("alice")
	if !exists {
		t.Fatal("Expected connection for alice")
	}
	if got.ConnID != "conn-2" {
		t.Errorf("Expected newer conn-2 to win, got %s", got.ConnID)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected a single entry, got %d", registry.Count())
	}
}

func TestRegistry_StaleUnregisterIsNoOp(t *testing.T) {
	registry := NewConnectionRegistry()

	// User reconnects before the old connection's disconnect handler fires
	registry.Register(newTestConn("alice", "conn-old"))
	registry.Register(newTestConn("alice", "conn-new"))

	// The old connection's disconnect arrives late
	registry.Unregister("alice", "conn-old")

	got, exists := registry.Lookup("alice")
	if !exists {
		t.Fatal("Stale unregister must not evict the new connection")
	}
	if got.ConnID != "conn-new" {
		t.Errorf("Expected conn-new to survive, got %s", got.ConnID)
	}

	// The matching unregister does evict
	registry.Unregister("alice", "conn-new")
	if _, exists := registry.Lookup("alice"); exists {
		t.Error("Expected alice to be unregistered")
	}
}

func TestRegistry_UnregisterUnknownUser(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Unregister("ghost", "conn-1") // must not panic
	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d entries", registry.Count())
	}
}

func TestRegistry_Send(t *testing.T) {
	registry := NewConnectionRegistry()

	if registry.Send("alice", models.ServerMessage{Type: "connected"}) {
		t.Error("Send to unregistered user should report false")
	}

	conn := newTestConn("alice", "conn-1")
	registry.Register(conn)

	if !registry.Send("alice", models.ServerMessage{Type: "connected"}) {
		t.Fatal("Send to registered user should succeed")
	}

	msg := <-conn.WriteChan
	if msg.Type != "connected" {
		t.Errorf("Expected connected message, got %s", msg.Type)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewConnectionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i%10)
			connID := fmt.Sprintf("conn-%d", i)
			registry.Register(newTestConn(userID, connID))
			registry.Lookup(userID)
			registry.Unregister(userID, connID)
		}(i)
	}
	wg.Wait()

	// Every surviving entry must be internally consistent
	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if conn, exists := registry.Lookup(userID); exists && conn.UserID != userID {
			t.Errorf("Registry entry for %s holds connection owned by %s", userID, conn.UserID)
		}
	}
}
