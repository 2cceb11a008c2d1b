package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// EventType names what happened to a session.
type EventType string

const (
	EventStarted       EventType = "started"
	EventTick          EventType = "tick"
	EventAnswered      EventType = "answered"
	EventCleared       EventType = "cleared"
	EventNavigated     EventType = "navigated"
	EventAdvanced      EventType = "advanced"
	EventReadyToSubmit EventType = "ready_to_submit"
	EventSubmitting    EventType = "submitting"
	EventSubmitFailed  EventType = "submit_failed"
	EventCompleted     EventType = "completed"
	EventExpired       EventType = "expired"
	EventAbandoned     EventType = "abandoned"
)

// Event is emitted after every state change, outside the session lock.
type Event struct {
	Type                 EventType           `json:"type"`
	AttemptID            uuid.UUID           `json:"attempt_id"`
	Status               model.AttemptStatus `json:"status"`
	CurrentIndex         int                 `json:"current_index"`
	TimeRemainingSeconds int                 `json:"time_remaining_seconds"`
	QuestionID           *uuid.UUID          `json:"question_id,omitempty"`
	At                   time.Time           `json:"at"`
	Version              uint64              `json:"version"`
}

// Observer receives session events. It may call back into the session.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// Options tune a session's runtime behaviour.
type Options struct {
	UserID int
	Demo   bool
	// TickInterval is the countdown period. Zero leaves the countdown to
	// explicit Tick calls.
	TickInterval time.Duration
	// AdvanceDelay is the pause between answering and auto-advancing.
	// Zero advances immediately.
	AdvanceDelay time.Duration
	Observer     Observer
	Scheduler    Scheduler
	Now          func() time.Time
}

var allowedTransitions = map[model.AttemptStatus][]model.AttemptStatus{
	model.AttemptStatusInProgress: {
		model.AttemptStatusSubmitting,
		model.AttemptStatusExpired,
		model.AttemptStatusAbandoned,
	},
	model.AttemptStatusSubmitting: {
		model.AttemptStatusCompleted,
	},
}

func canTransition(from, to model.AttemptStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session owns one attempt. Its methods are the only way to mutate the
// attempt and are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	attempt   model.Attempt
	index     map[uuid.UUID]int
	opts      Options
	scheduler Scheduler
	now       func() time.Time

	timer      *countdown
	advance    *pendingAdvance
	advanceSeq uint64
	shownAt    time.Time

	started    bool
	submitting bool
	closed     bool
}

func newSession(attempt model.Attempt, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if attempt.Responses == nil {
		attempt.Responses = make(map[uuid.UUID]model.Response)
	}

	idx := make(map[uuid.UUID]int, len(attempt.Questions))
	for i, q := range attempt.Questions {
		idx[q.ID] = i
	}

	return &Session{
		attempt:   attempt,
		index:     idx,
		opts:      opts,
		scheduler: opts.Scheduler,
		now:       opts.Now,
	}
}

// Restore rebuilds a session from a saved attempt. The caller must Start it.
func Restore(attempt model.Attempt, opts Options) *Session {
	attempt.PendingAdvance = false
	if attempt.CurrentIndex >= len(attempt.Questions) {
		attempt.CurrentIndex = len(attempt.Questions) - 1
	}
	if attempt.CurrentIndex < 0 {
		attempt.CurrentIndex = 0
	}
	if attempt.TimeRemainingSeconds < 0 {
		attempt.TimeRemainingSeconds = 0
	}
	opts.UserID = attempt.UserID
	opts.Demo = attempt.Demo
	return newSession(attempt, opts)
}

// Start launches the countdown. A session restored with no time left expires here.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.closed || s.attempt.Status != model.AttemptStatusInProgress {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.shownAt = s.now()

	events := []Event{s.eventLocked(EventStarted, nil)}
	if s.attempt.TimeRemainingSeconds <= 0 {
		events = append(events, s.expireLocked()...)
	} else if s.opts.TickInterval > 0 {
		s.timer = startCountdown(s.opts.TickInterval, s.Tick)
	}
	s.mu.Unlock()

	s.dispatch(events)
}

// Close tears the session down without changing its status: timers stop and
// every later operation fails with ErrSessionClosed or no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
}

// ID returns the attempt id.
func (s *Session) ID() uuid.UUID {
	return s.attempt.ID
}

// UserID returns the owner of the attempt.
func (s *Session) UserID() int {
	return s.attempt.UserID
}

// Status returns the current status.
func (s *Session) Status() model.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.Status
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot returns a copy of the attempt safe to hand out.
func (s *Session) Snapshot() model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.Attempt {
	a := s.attempt
	a.Questions = append([]model.Question(nil), s.attempt.Questions...)
	a.Responses = make(map[uuid.UUID]model.Response, len(s.attempt.Responses))
	for k, v := range s.attempt.Responses {
		a.Responses[k] = v
	}
	if s.attempt.CompletedAt != nil {
		t := *s.attempt.CompletedAt
		a.CompletedAt = &t
	}
	a.ReadyToSubmit = s.readyToSubmitLocked()
	a.SnapshotAt = s.now()
	return a
}

func (s *Session) readyToSubmitLocked() bool {
	last := len(s.attempt.Questions) - 1
	if s.attempt.Status != model.AttemptStatusInProgress || last < 0 || s.attempt.CurrentIndex != last {
		return false
	}
	_, answered := s.attempt.Responses[s.attempt.Questions[last].ID]
	return answered
}

func (s *Session) transitionLocked(op string, to model.AttemptStatus) error {
	if !canTransition(s.attempt.Status, to) {
		return &TransitionError{Op: op, Status: s.attempt.Status}
	}
	s.attempt.Status = to
	if to != model.AttemptStatusInProgress {
		s.stopTimersLocked()
	}
	return nil
}

func (s *Session) eventLocked(t EventType, questionID *uuid.UUID) Event {
	s.attempt.Version++
	return Event{
		Version:              s.attempt.Version,
		Type:                 t,
		AttemptID:            s.attempt.ID,
		Status:               s.attempt.Status,
		CurrentIndex:         s.attempt.CurrentIndex,
		TimeRemainingSeconds: s.attempt.TimeRemainingSeconds,
		QuestionID:           questionID,
		At:                   s.now(),
	}
}

func (s *Session) dispatch(events []Event) {
	if s.opts.Observer == nil {
		return
	}
	for _, ev := range events {
		s.opts.Observer.OnEvent(ev)
	}
}
