package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"teachback/internal/models"
)

// streamAppender is the slice of the Redis client the publisher needs.
type streamAppender interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

var _ streamAppender = (*redis.Client)(nil)

// EventPublisher appends inbound teach events to the chat input stream.
//
// Delivery is fire-and-forget: a failed publish is logged and counted, never
// surfaced to the transport layer. The user's message stays "sent" locally and
// the only observable symptom of a drop is the absence of a follow-up
// question, which the session machine surfaces as a timeout. This trades
// strict delivery for availability; retries are the broker client's business.
type EventPublisher struct {
	client  streamAppender
	topic   string
	metrics *Metrics
}

// NewEventPublisher creates a publisher for the given input stream
func NewEventPublisher(client streamAppender, topic string, metrics *Metrics) *EventPublisher {
	return &EventPublisher{
		client:  client,
		topic:   topic,
		metrics: metrics,
	}
}

// Publish serializes one inbound event and appends it to the input stream
func (p *EventPublisher) Publish(ctx context.Context, event models.InboundEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ Failed to marshal inbound event for user %s: %v", event.UserID, err)
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.topic,
		Values: map[string]interface{}{"payload": data},
	}).Err()
	if err != nil {
		log.Printf("⚠️ Broker publish failure for user %s: %v", event.UserID, err)
		if p.metrics != nil {
			p.metrics.PublishErrors.Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.Inc()
	}
}
