package session

import (
	"context"
	"log"
	"sync"
	"time"

	"teachback/internal/models"
)

// Sender delivers a server message to a user's live connection.
// Satisfied by the connection registry.
type Sender interface {
	Send(userID string, msg models.ServerMessage) bool
}

// StatsRecorder persists a completed session's streak
type StatsRecorder interface {
	RecordStreak(ctx context.Context, userID string, duration int, topic string) error
}

// Manager owns the server-side session machines, one per user, and the 1s
// ticker that drives streak and deadline accounting while a session is
// active. All mutation of one user's machine goes through that user's
// session lock; the manager map itself is the only cross-user state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	tick   time.Duration
	window time.Duration
	sender Sender
	stats  StatsRecorder

	// OnStarted and OnEnded are optional hooks invoked once per session
	// start and ending. Used for metrics.
	OnStarted func()
	OnEnded   func(reason EndReason)
}

// Session pairs a user's machine with its running ticker
type Session struct {
	userID string

	mu         sync.Mutex
	machine    *Machine
	cancelTick context.CancelFunc
}

// NewManager creates a session manager
func NewManager(tick, window time.Duration, sender Sender, stats StatsRecorder) *Manager {
	if tick <= 0 {
		tick = time.Second
	}
	return &Manager{
		sessions: make(map[string]*Session),
		tick:     tick,
		window:   window,
		sender:   sender,
		stats:    stats,
	}
}

// Start moves the user's session to active on the given topic and starts its
// ticker. Returns true if the session actually started (false when one was
// already active); the caller publishes the synthetic greeting only on true,
// so the greeting is emitted exactly once per start.
func (mgr *Manager) Start(userID, topic string) bool {
	s := mgr.session(userID, true)

	s.mu.Lock()
	started := s.machine.Start(topic)
	if started {
		mgr.startTicker(s)
	}
	s.mu.Unlock()

	if started {
		log.Printf("🎓 Session started: user=%s topic=%q", userID, topic)
		mgr.sender.Send(userID, models.ServerMessage{Type: "session:started", Topic: topic})
		if mgr.OnStarted != nil {
			mgr.OnStarted()
		}
	}
	return started
}

// HandleScore applies a score event from the broker to the user's machine.
// A score for a user with no session is ignored.
func (mgr *Manager) HandleScore(userID string, score int) {
	s := mgr.session(userID, false)
	if s == nil {
		return
	}

	s.mu.Lock()
	ended := s.machine.SetScore(score)
	streak := s.machine.CurrentStreak
	topic := s.machine.Topic
	s.mu.Unlock()

	if ended {
		mgr.finish(s, ReasonConfusion, streak, topic)
	}
}

// StartComposing arms the user's response deadline (first keystroke)
func (mgr *Manager) StartComposing(userID string) {
	s := mgr.session(userID, false)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.machine.StartComposing(time.Now())
	s.mu.Unlock()
}

// MessageSent disarms the user's response deadline (reply submitted)
func (mgr *Manager) MessageSent(userID string) {
	s := mgr.session(userID, false)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.machine.MessageSent()
	s.mu.Unlock()
}

// End terminates the user's session on their explicit request
func (mgr *Manager) End(userID string) {
	s := mgr.session(userID, false)
	if s == nil {
		return
	}

	s.mu.Lock()
	ended := s.machine.End()
	streak := s.machine.CurrentStreak
	topic := s.machine.Topic
	s.mu.Unlock()

	if ended {
		mgr.finish(s, ReasonUser, streak, topic)
	}
}

// Reset drops the user's session entirely (logout or disconnect), stopping
// any running ticker so no timer outlives the session.
func (mgr *Manager) Reset(userID string) {
	mgr.mu.Lock()
	s, exists := mgr.sessions[userID]
	if exists {
		delete(mgr.sessions, userID)
	}
	mgr.mu.Unlock()

	if !exists {
		return
	}

	s.mu.Lock()
	mgr.stopTicker(s)
	s.machine.Reset()
	s.mu.Unlock()
}

// Topic reports the user's selected topic, if a session exists
func (mgr *Manager) Topic(userID string) string {
	s := mgr.session(userID, false)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Topic
}

// Stop cancels every running ticker. Used at shutdown.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	all := make([]*Session, 0, len(mgr.sessions))
	for _, s := range mgr.sessions {
		all = append(all, s)
	}
	mgr.sessions = make(map[string]*Session)
	mgr.mu.Unlock()

	for _, s := range all {
		s.mu.Lock()
		mgr.stopTicker(s)
		s.mu.Unlock()
	}
}

func (mgr *Manager) session(userID string, create bool) *Session {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	s, exists := mgr.sessions[userID]
	if !exists && create {
		s = &Session{
			userID:  userID,
			machine: NewMachine(mgr.window),
		}
		mgr.sessions[userID] = s
	}
	return s
}

// startTicker launches the per-session tick loop. Caller holds s.mu.
func (mgr *Manager) startTicker(s *Session) {
	if s.cancelTick != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTick = cancel
	go mgr.runTicker(ctx, s)
}

// stopTicker cancels the tick loop if one is running. Caller holds s.mu.
func (mgr *Manager) stopTicker(s *Session) {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

func (mgr *Manager) runTicker(ctx context.Context, s *Session) {
	ticker := time.NewTicker(mgr.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			ended, reason := s.machine.Tick(now)
			streak := s.machine.CurrentStreak
			topic := s.machine.Topic
			s.mu.Unlock()

			if ended {
				mgr.finish(s, reason, streak, topic)
				return
			}
		}
	}
}

// finish runs the ending side effects exactly once per session end: stop the
// ticker, notify the client, and persist the streak when it clears the
// minimum. The machine itself already left the active state.
func (mgr *Manager) finish(s *Session, reason EndReason, streak int, topic string) {
	s.mu.Lock()
	mgr.stopTicker(s)
	s.mu.Unlock()

	log.Printf("🏁 Session ended: user=%s reason=%s streak=%d", s.userID, reason, streak)

	mgr.sender.Send(s.userID, models.ServerMessage{
		Type:   "session:ended",
		Reason: string(reason),
		Streak: streak,
	})

	if mgr.OnEnded != nil {
		mgr.OnEnded(reason)
	}

	if mgr.stats != nil && streak > MinPersistStreak {
		userID := s.userID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mgr.stats.RecordStreak(ctx, userID, streak, topic); err != nil {
				log.Printf("⚠️ Failed to record streak for user %s: %v", userID, err)
			}
		}()
	}
}
