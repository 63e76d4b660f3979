package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"teachback/internal/models"
	"teachback/internal/services"
	"teachback/internal/session"
)

// WebSocketHandler owns one authenticated transport connection per user and
// bridges it to the broker: outgoing chat messages become input-stream
// events, and the session manager mirrors the client's teaching session.
type WebSocketHandler struct {
	registry  *services.ConnectionRegistry
	publisher *services.EventPublisher
	sessions  *session.Manager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(registry *services.ConnectionRegistry, publisher *services.EventPublisher, sessions *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		registry:  registry,
		publisher: publisher,
		sessions:  sessions,
	}
}

// Handle handles a new WebSocket connection. Auth middleware has already run;
// user_id is in Locals or the connection would have been rejected.
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	userID := c.Locals("user_id").(string)

	done := make(chan struct{})

	userConn := &models.UserConnection{
		ConnID:    connID,
		UserID:    userID,
		Conn:      c,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, 100),
	}

	// Last-connect-wins: a reconnect replaces any previous entry
	h.registry.Register(userConn)
	defer func() {
		close(done)
		userConn.MarkClosed()
		close(userConn.WriteChan)

		// Guarded: a stale disconnect must not evict a fresh reconnect
		h.registry.Unregister(userID, connID)

		// Drop the session only if this was the user's current connection;
		// after a replacement the new connection's session is still live
		if _, exists := h.registry.Lookup(userID); !exists {
			h.sessions.Reset(userID)
		}
	}()

	c.SetReadDeadline(time.Now().Add(120 * time.Second))
	c.SetPongHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	go h.pingLoop(userConn, done)
	go h.writeLoop(userConn)

	userConn.WriteChan <- models.ServerMessage{
		Type:    "connected",
		Content: "WebSocket connected. Ready to receive messages.",
	}

	h.readLoop(userConn)
}

// pingLoop sends periodic pings to keep the connection alive
func (h *WebSocketHandler) pingLoop(userConn *models.UserConnection, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			userConn.Mutex.Lock()
			if err := userConn.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("⚠️ Ping failed for %s: %v", userConn.ConnID, err)
				userConn.Mutex.Unlock()
				return
			}
			userConn.Mutex.Unlock()
		}
	}
}

// writeLoop drains WriteChan onto the wire
func (h *WebSocketHandler) writeLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in writeLoop: %v", r)
		}
	}()

	for msg := range userConn.WriteChan {
		if err := userConn.Conn.WriteJSON(msg); err != nil {
			log.Printf("❌ WebSocket write error for %s: %v", userConn.ConnID, err)
			return
		}
	}
}

// readLoop handles incoming messages from the client
func (h *WebSocketHandler) readLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in readLoop: %v", r)
		}
	}()

	for {
		_, msg, err := userConn.Conn.ReadMessage()
		if err != nil {
			log.Printf("❌ WebSocket read error for %s: %v", userConn.ConnID, err)
			break
		}

		userConn.Conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			log.Printf("⚠️  Invalid message format from %s: %v", userConn.ConnID, err)
			userConn.SafeSend(models.ServerMessage{
				Type:    "error",
				Content: "Invalid message format",
			})
			continue
		}

		switch clientMsg.Type {
		case "ping":
			userConn.SafeSend(models.ServerMessage{Type: "pong"})
		case "message:send":
			h.handleSendMessage(userConn, clientMsg)
		case "message:typing":
			// First keystroke of a pending reply arms the response deadline
			h.sessions.StartComposing(userConn.UserID)
		case "session:start":
			h.handleSessionStart(userConn, clientMsg)
		case "session:end":
			h.sessions.End(userConn.UserID)
		case "session:reset":
			h.sessions.Reset(userConn.UserID)
		default:
			log.Printf("⚠️  Unknown message type: %s", clientMsg.Type)
		}
	}
}

// handleSessionStart activates the teaching session and emits the synthetic
// greeting event that kicks off the inference worker, exactly once per start.
func (h *WebSocketHandler) handleSessionStart(userConn *models.UserConnection, clientMsg models.ClientMessage) {
	if clientMsg.Topic == "" {
		userConn.SafeSend(models.ServerMessage{
			Type:    "error",
			Content: "Topic is required to start a session",
		})
		return
	}

	if !h.sessions.Start(userConn.UserID, clientMsg.Topic) {
		// Already active; nothing to do and no second greeting
		return
	}

	h.publisher.Publish(context.Background(), models.InboundEvent{
		UserID:    userConn.UserID,
		SocketID:  userConn.ConnID,
		Message:   "[INITIAL_GREETING]",
		Topic:     clientMsg.Topic,
		IsInitial: true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSendMessage publishes the user's explanation to the input stream.
// Publishing is fire-and-forget; the message is "sent" from the user's point
// of view regardless of broker health.
func (h *WebSocketHandler) handleSendMessage(userConn *models.UserConnection, clientMsg models.ClientMessage) {
	topic := clientMsg.Topic
	if topic == "" {
		topic = h.sessions.Topic(userConn.UserID)
	}

	// Submitting a reply disarms the response deadline
	h.sessions.MessageSent(userConn.UserID)

	h.publisher.Publish(context.Background(), models.InboundEvent{
		UserID:    userConn.UserID,
		SocketID:  userConn.ConnID,
		Message:   clientMsg.Message,
		Topic:     topic,
		IsInitial: clientMsg.IsInitial,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
