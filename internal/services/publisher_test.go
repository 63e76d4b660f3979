package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"teachback/internal/models"
)

type fakeAppender struct {
	err     error
	entries []*redis.XAddArgs
}

func (f *fakeAppender) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.entries = append(f.entries, a)
	cmd.SetVal("1-0")
	return cmd
}

func TestPublisher_AppendsEventToInputStream(t *testing.T) {
	appender := &fakeAppender{}
	publisher := NewEventPublisher(appender, "chat.input", nil)

	event := models.InboundEvent{
		UserID:    "alice",
		SocketID:  "conn-1",
		Message:   "A binary heap is a complete tree",
		Topic:     "Algorithms",
		Timestamp: "2026-01-01T00:00:00Z",
	}
	publisher.Publish(context.Background(), event)

	if len(appender.entries) != 1 {
		t.Fatalf("Expected one stream entry, got %d", len(appender.entries))
	}
	entry := appender.entries[0]
	if entry.Stream != "chat.input" {
		t.Errorf("Expected chat.input stream, got %s", entry.Stream)
	}

	payload, ok := entry.Values.(map[string]interface{})["payload"].([]byte)
	if !ok {
		t.Fatal("Expected payload field in stream entry")
	}
	var decoded models.InboundEvent
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Failed to decode published payload: %v", err)
	}
	if decoded != event {
		t.Errorf("Published event %+v does not match %+v", decoded, event)
	}
}

func TestPublisher_FailureDoesNotPropagate(t *testing.T) {
	// Fire-and-forget is a deliberate tradeoff: a broker failure is logged,
	// the caller never sees it and the loop serving the user keeps going.
	appender := &fakeAppender{err: errors.New("broker unavailable")}
	publisher := NewEventPublisher(appender, "chat.input", nil)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Publish must not panic on broker failure: %v", r)
		}
	}()

	publisher.Publish(context.Background(), models.InboundEvent{
		UserID:  "alice",
		Message: "hello",
		Topic:   "Algorithms",
	})
}
