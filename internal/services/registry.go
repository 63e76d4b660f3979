package services

import (
	"log"
	"sync"

	"teachback/internal/models"
)

// ConnectionRegistry maps each authenticated user to their single live
// WebSocket connection. Registering a new connection for a user replaces the
// previous one (last-connect-wins); unregistering only evicts the entry when
// the stored connection is the one being removed, so a stale disconnect
// callback cannot race a fresh reconnect out of the registry.
type ConnectionRegistry struct {
	connections map[string]*models.UserConnection // userID -> connection
	mutex       sync.RWMutex
}

// NewConnectionRegistry creates a new connection registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*models.UserConnection),
	}
}

// Register stores the connection for a user, replacing any existing entry
func (r *ConnectionRegistry) Register(conn *models.UserConnection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prev, exists := r.connections[conn.UserID]; exists && prev.ConnID != conn.ConnID {
		log.Printf("🔁 Connection replaced for user %s: %s -> %s", conn.UserID, prev.ConnID, conn.ConnID)
	}
	r.connections[conn.UserID] = conn
	log.Printf("✅ Connection registered: user=%s conn=%s (Total: %d)", conn.UserID, conn.ConnID, len(r.connections))
}

// Unregister removes the user's entry only if it still holds connID.
// A mismatch means the user already reconnected; the stale disconnect is a no-op.
func (r *ConnectionRegistry) Unregister(userID, connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, exists := r.connections[userID]
	if !exists {
		return
	}
	if conn.ConnID != connID {
		log.Printf("⏭️  Stale disconnect ignored: user=%s conn=%s (current: %s)", userID, connID, conn.ConnID)
		return
	}
	delete(r.connections, userID)
	log.Printf("❌ Connection unregistered: user=%s conn=%s (Total: %d)", userID, connID, len(r.connections))
}

// Lookup retrieves the live connection for a user. A miss means the user has
// no active connection; callers treat that as a legitimate drop, not an error.
func (r *ConnectionRegistry) Lookup(userID string) (*models.UserConnection, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	conn, exists := r.connections[userID]
	return conn, exists
}

// Count returns the number of active connections
func (r *ConnectionRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.connections)
}

// Send delivers a message to the user's live connection, if any.
// Returns false when the user has no active connection or it is closing.
func (r *ConnectionRegistry) Send(userID string, msg models.ServerMessage) bool {
	conn, exists := r.Lookup(userID)
	if !exists {
		return false
	}
	return conn.SafeSend(msg)
}
