package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"teachback/internal/models"
	"teachback/internal/session"
)

// ScoreSink receives confusion score updates for the server-side session
// machines. Implemented by the session manager.
type ScoreSink interface {
	HandleScore(userID string, score int)
}

// EventSubscriber runs the persistent consumer loop over the question and
// score output streams and routes each event to the user's live connection.
// Events for users with no active connection are dropped silently; malformed
// payloads are logged and skipped. Neither ever stops the loop.
type EventSubscriber struct {
	client      *redis.Client
	registry    *ConnectionRegistry
	sessions    ScoreSink
	outputTopic string
	scoreTopic  string
	group       string
	consumer    string
	metrics     *Metrics
}

// NewEventSubscriber creates a subscriber over the two output streams
func NewEventSubscriber(client *redis.Client, registry *ConnectionRegistry, sessions ScoreSink, outputTopic, scoreTopic, group, consumer string, metrics *Metrics) *EventSubscriber {
	return &EventSubscriber{
		client:      client,
		registry:    registry,
		sessions:    sessions,
		outputTopic: outputTopic,
		scoreTopic:  scoreTopic,
		group:       group,
		consumer:    consumer,
		metrics:     metrics,
	}
}

// Run consumes output and score events until the context is cancelled.
// Group creation failure is fatal (startup); steady-state broker errors are
// logged and retried.
func (s *EventSubscriber) Run(ctx context.Context) error {
	for _, topic := range []string{s.outputTopic, s.scoreTopic} {
		err := s.client.XGroupCreateMkStream(ctx, topic, s.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group on %s: %w", topic, err)
		}
	}

	log.Printf("📡 Subscriber started (group=%s consumer=%s topics=%s,%s)", s.group, s.consumer, s.outputTopic, s.scoreTopic)

	for {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.outputTopic, s.scoreTopic, ">", ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()

		if ctx.Err() != nil {
			log.Println("📡 Subscriber stopped")
			return nil
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			// Transient broker trouble: log and keep the loop alive
			log.Printf("⚠️ Broker read failure: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.handleEntry(stream.Stream, msg.Values)
				if err := s.client.XAck(ctx, stream.Stream, s.group, msg.ID).Err(); err != nil {
					log.Printf("⚠️ Failed to ack %s on %s: %v", msg.ID, stream.Stream, err)
				}
			}
		}
	}
}

// handleEntry routes one consumed stream entry. It never returns an error:
// anything unroutable is counted, logged and skipped.
func (s *EventSubscriber) handleEntry(topic string, values map[string]interface{}) {
	payload, ok := values["payload"].(string)
	if !ok {
		log.Printf("⚠️ Dropping entry on %s without payload field", topic)
		s.dropped("malformed")
		return
	}

	switch topic {
	case s.outputTopic:
		s.routeQuestion([]byte(payload))
	case s.scoreTopic:
		s.routeScore([]byte(payload))
	default:
		log.Printf("⚠️ Entry on unexpected stream %s ignored", topic)
	}
}

func (s *EventSubscriber) routeQuestion(payload []byte) {
	var event models.QuestionEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.UserID == "" {
		log.Printf("⚠️ Malformed question event skipped: %v", err)
		s.dropped("malformed")
		return
	}

	conn, exists := s.registry.Lookup(event.UserID)
	if !exists {
		// User has no live connection; a drop here is intentional
		s.dropped("no_connection")
		return
	}

	ok := conn.SafeSend(models.ServerMessage{
		Type:      "message:receive",
		Question:  event.Question,
		Timestamp: event.Timestamp,
	})
	if !ok {
		// Full write buffer or closing connection; must not stall the loop
		s.dropped("slow_consumer")
		return
	}
	s.delivered("question")
}

func (s *EventSubscriber) routeScore(payload []byte) {
	var event models.ScoreEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.UserID == "" {
		log.Printf("⚠️ Malformed score event skipped: %v", err)
		s.dropped("malformed")
		return
	}

	// The server-side machine sees the score whether or not the user is
	// connected; confusion-driven termination must not wait for delivery.
	if s.sessions != nil {
		s.sessions.HandleScore(event.UserID, event.Score)
	}

	conn, exists := s.registry.Lookup(event.UserID)
	if !exists {
		s.dropped("no_connection")
		return
	}

	score := session.ClampScore(event.Score)
	if !conn.SafeSend(models.ServerMessage{Type: "message:score", Score: &score}) {
		s.dropped("slow_consumer")
		return
	}
	s.delivered("score")
}

func (s *EventSubscriber) dropped(reason string) {
	if s.metrics != nil {
		s.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (s *EventSubscriber) delivered(topic string) {
	if s.metrics != nil {
		s.metrics.EventsDelivered.WithLabelValues(topic).Inc()
	}
}
