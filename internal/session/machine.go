package session

import "time"

// Status is the lifecycle state of a teaching session
type Status string

const (
	StatusSelecting Status = "selecting"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

// EndReason tags why a session left the active state
type EndReason string

const (
	ReasonTimeout   EndReason = "timeout"
	ReasonConfusion EndReason = "confusion"
	ReasonUser      EndReason = "user"
)

const (
	// ConfusionThreshold ends the session and resets the streak once reached
	ConfusionThreshold = 45
	// MinPersistStreak is the streak a session must exceed to be recorded
	MinPersistStreak = 2
	// DefaultResponseWindow is how long the user has to answer once they
	// start composing a reply
	DefaultResponseWindow = 60 * time.Second
)

// Machine is one user's teaching-session state machine. Scores overwrite the
// confusion score with no smoothing; the streak advances once per tick while
// confusion stays under the threshold. The machine is pure: all time flows in
// through method arguments, so a sequence of inputs is replayable.
//
// Machine is not safe for concurrent use; the Manager serializes access.
type Machine struct {
	Topic          string
	Status         Status
	ConfusionScore int // unclamped; DisplayScore clamps for presentation
	CurrentStreak  int
	BestStreak     int
	Deadline       *time.Time

	window time.Duration
}

// NewMachine creates a machine in the selecting state
func NewMachine(window time.Duration) *Machine {
	if window <= 0 {
		window = DefaultResponseWindow
	}
	return &Machine{
		Status: StatusSelecting,
		window: window,
	}
}

// Start activates a session on the given topic. Valid from selecting (first
// start) and from ended (restart, which keeps the best streak). Returns false
// if the session is already active.
func (m *Machine) Start(topic string) bool {
	if m.Status == StatusActive {
		return false
	}
	m.Topic = topic
	m.Status = StatusActive
	m.ConfusionScore = 0
	m.CurrentStreak = 0
	m.Deadline = nil
	return true
}

// SetScore applies a score event. Last write wins. If the score reaches the
// confusion threshold while active the session ends on this same update,
// without waiting for the next tick.
func (m *Machine) SetScore(score int) (ended bool) {
	m.ConfusionScore = score
	if m.Status == StatusActive && score >= ConfusionThreshold {
		m.end()
		return true
	}
	return false
}

// Tick advances the once-per-second accounting: streak bookkeeping first,
// then the response deadline. Only active sessions tick.
func (m *Machine) Tick(now time.Time) (ended bool, reason EndReason) {
	if m.Status != StatusActive {
		return false, ""
	}

	if m.ConfusionScore < ConfusionThreshold {
		m.CurrentStreak++
		if m.CurrentStreak > m.BestStreak {
			m.BestStreak = m.CurrentStreak
		}
	} else {
		m.CurrentStreak = 0
	}

	if m.Deadline != nil && !now.Before(*m.Deadline) {
		m.end()
		return true, ReasonTimeout
	}
	return false, ""
}

// StartComposing arms the response deadline on the first keystroke of a
// pending reply. A no-op if the deadline is already armed.
func (m *Machine) StartComposing(now time.Time) {
	if m.Status != StatusActive || m.Deadline != nil {
		return
	}
	deadline := now.Add(m.window)
	m.Deadline = &deadline
}

// MessageSent disarms the response deadline the instant the user submits
func (m *Machine) MessageSent() {
	m.Deadline = nil
}

// End terminates an active session. Returns false if there was nothing to end.
func (m *Machine) End() bool {
	if m.Status != StatusActive {
		return false
	}
	m.end()
	return true
}

// Reset returns to selecting and clears the session fields. The best streak
// is kept: it is a per-process high-water mark, same as a restart from ended.
func (m *Machine) Reset() {
	m.Topic = ""
	m.Status = StatusSelecting
	m.ConfusionScore = 0
	m.CurrentStreak = 0
	m.Deadline = nil
}

// ClampScore bounds a raw score to the 0..100 percentage shown to the user.
// Scores are delivered clamped; the machine compares the raw value.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DisplayScore is the confusion percentage shown to the user
func (m *Machine) DisplayScore() int {
	return ClampScore(m.ConfusionScore)
}

func (m *Machine) end() {
	m.Status = StatusEnded
	m.Deadline = nil
}
