package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"teachback/internal/models"
)

type fakeSender struct {
	msgs chan models.ServerMessage
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: make(chan models.ServerMessage, 100)}
}

func (f *fakeSender) Send(userID string, msg models.ServerMessage) bool {
	f.msgs <- msg
	return true
}

// waitFor blocks until a message of the given type arrives or times out
func (f *fakeSender) waitFor(t *testing.T, msgType string, timeout time.Duration) models.ServerMessage {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-f.msgs:
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", msgType)
			return models.ServerMessage{}
		}
	}
}

type streakCall struct {
	userID   string
	duration int
	topic    string
}

type fakeStats struct {
	mu    sync.Mutex
	calls []streakCall
}

func (f *fakeStats) RecordStreak(ctx context.Context, userID string, duration int, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, streakCall{userID, duration, topic})
	return nil
}

func (f *fakeStats) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestManager_StartIsExactlyOncePerActivation(t *testing.T) {
	sender := newFakeSender()
	mgr := NewManager(time.Hour, time.Minute, sender, nil)
	defer mgr.Stop()

	if !mgr.Start("alice", "Algorithms") {
		t.Fatal("First start should succeed")
	}
	sender.waitFor(t, "session:started", time.Second)

	if mgr.Start("alice", "Algorithms") {
		t.Error("Start while active must be rejected, or the greeting would be published twice")
	}
}

func TestManager_ConfusionScoreEndsSessionWithoutPersisting(t *testing.T) {
	// Spec scenario: session starts, a score of 80 arrives, the session ends
	// with streak 0 and the stats collaborator is not called.
	sender := newFakeSender()
	stats := &fakeStats{}
	mgr := NewManager(time.Hour, time.Minute, sender, stats)
	defer mgr.Stop()

	mgr.Start("alice", "Algorithms")
	sender.waitFor(t, "session:started", time.Second)

	mgr.HandleScore("alice", 80)

	ended := sender.waitFor(t, "session:ended", time.Second)
	if ended.Reason != string(ReasonConfusion) {
		t.Errorf("Expected confusion reason, got %s", ended.Reason)
	}
	if ended.Streak != 0 {
		t.Errorf("Expected streak 0, got %d", ended.Streak)
	}

	time.Sleep(50 * time.Millisecond)
	if stats.callCount() != 0 {
		t.Error("Streak of 0 must not be persisted")
	}
}

func TestManager_PersistsStreakAboveMinimum(t *testing.T) {
	sender := newFakeSender()
	stats := &fakeStats{}
	mgr := NewManager(5*time.Millisecond, time.Minute, sender, stats)
	defer mgr.Stop()

	mgr.Start("alice", "Algorithms")
	sender.waitFor(t, "session:started", time.Second)

	// Let the ticker build a streak past the persistence minimum
	time.Sleep(50 * time.Millisecond)
	mgr.End("alice")

	ended := sender.waitFor(t, "session:ended", time.Second)
	if ended.Reason != string(ReasonUser) {
		t.Errorf("Expected user reason, got %s", ended.Reason)
	}
	if ended.Streak <= MinPersistStreak {
		t.Fatalf("Expected streak above %d, got %d", MinPersistStreak, ended.Streak)
	}

	// Persistence runs async
	deadline := time.Now().Add(time.Second)
	for stats.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if stats.callCount() != 1 {
		t.Fatalf("Expected one streak record, got %d", stats.callCount())
	}

	stats.mu.Lock()
	call := stats.calls[0]
	stats.mu.Unlock()
	if call.userID != "alice" || call.topic != "Algorithms" {
		t.Errorf("Unexpected record %+v", call)
	}
	if call.duration != ended.Streak {
		t.Errorf("Recorded duration %d does not match ended streak %d", call.duration, ended.Streak)
	}
}

func TestManager_DeadlineExpiryEndsWithTimeout(t *testing.T) {
	sender := newFakeSender()
	mgr := NewManager(10*time.Millisecond, 30*time.Millisecond, sender, nil)
	defer mgr.Stop()

	mgr.Start("alice", "Algorithms")
	sender.waitFor(t, "session:started", time.Second)

	mgr.StartComposing("alice")

	ended := sender.waitFor(t, "session:ended", time.Second)
	if ended.Reason != string(ReasonTimeout) {
		t.Errorf("Expected timeout reason, got %s", ended.Reason)
	}
}

func TestManager_MessageSentDisarmsDeadline(t *testing.T) {
	sender := newFakeSender()
	mgr := NewManager(10*time.Millisecond, 30*time.Millisecond, sender, nil)
	defer mgr.Stop()

	mgr.Start("alice", "Algorithms")
	sender.waitFor(t, "session:started", time.Second)

	mgr.StartComposing("alice")
	mgr.MessageSent("alice")

	// Well past the response window: the session must still be alive
	time.Sleep(100 * time.Millisecond)
	select {
	case msg := <-sender.msgs:
		if msg.Type == "session:ended" {
			t.Fatal("Disarmed deadline must not end the session")
		}
	default:
	}
}

func TestManager_ResetDropsSessionSilently(t *testing.T) {
	sender := newFakeSender()
	stats := &fakeStats{}
	mgr := NewManager(5*time.Millisecond, time.Minute, sender, stats)
	defer mgr.Stop()

	mgr.Start("alice", "Algorithms")
	sender.waitFor(t, "session:started", time.Second)

	mgr.Reset("alice")
	if got := mgr.Topic("alice"); got != "" {
		t.Errorf("Expected no session after reset, got topic %q", got)
	}

	// No ending notification, no persistence, no leaked ticker activity
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case msg := <-sender.msgs:
			if msg.Type == "session:ended" {
				t.Fatal("Reset must not emit session:ended")
			}
			continue
		default:
		}
		break
	}
	if stats.callCount() != 0 {
		t.Error("Reset must not persist a streak")
	}
}

func TestManager_ScoreForUnknownUserIgnored(t *testing.T) {
	sender := newFakeSender()
	mgr := NewManager(time.Hour, time.Minute, sender, nil)
	defer mgr.Stop()

	mgr.HandleScore("ghost", 80) // must not panic or create a session
	if got := mgr.Topic("ghost"); got != "" {
		t.Errorf("Score for unknown user must not create a session, got topic %q", got)
	}
}
