package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type      string `json:"type"` // "message:send", "message:typing", "session:start", "session:end", "session:reset"
	Message   string `json:"message,omitempty"`
	Topic     string `json:"topic,omitempty"`
	IsInitial bool   `json:"isInitial,omitempty"` // True for the synthetic greeting sent on session start
}

// ServerMessage represents a message sent to the client
type ServerMessage struct {
	Type      string `json:"type"` // "connected", "message:receive", "message:score", "session:started", "session:ended", "error"
	Question  string `json:"question,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Score     *int   `json:"score,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Reason    string `json:"reason,omitempty"` // For session:ended: "timeout", "confusion", or "user"
	Streak    int    `json:"streak,omitempty"` // Final streak reported with session:ended
	Content   string `json:"content,omitempty"`
}

// UserConnection represents a single WebSocket connection
type UserConnection struct {
	ConnID    string
	UserID    string
	Conn      *websocket.Conn
	CreatedAt time.Time
	WriteChan chan ServerMessage
	Mutex     sync.Mutex
	closed    bool
}

// SafeSend enqueues a message for the write loop without blocking. Returns
// false if the connection is closed or its write buffer is full. Senders share
// a single delivery loop, so a stalled consumer loses messages instead of
// holding up everyone else's.
func (uc *UserConnection) SafeSend(msg ServerMessage) bool {
	uc.Mutex.Lock()
	if uc.closed {
		uc.Mutex.Unlock()
		return false
	}
	uc.Mutex.Unlock()

	// Use defer/recover to handle panic from send on closed channel
	defer func() {
		if r := recover(); r != nil {
			uc.Mutex.Lock()
			uc.closed = true
			uc.Mutex.Unlock()
		}
	}()

	select {
	case uc.WriteChan <- msg:
		return true
	default:
		return false
	}
}

// MarkClosed marks the connection as closed
func (uc *UserConnection) MarkClosed() {
	uc.Mutex.Lock()
	uc.closed = true
	uc.Mutex.Unlock()
}

// IsClosed returns true if the connection has been marked as closed
func (uc *UserConnection) IsClosed() bool {
	uc.Mutex.Lock()
	defer uc.Mutex.Unlock()
	return uc.closed
}
