package engine

import (
	"sync"
	"time"

	"github.com/stemsi/quizrun-backend/internal/model"
)

// countdown drives Session.Tick from a ticker goroutine until stopped.
type countdown struct {
	ticker *time.Ticker
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func startCountdown(interval time.Duration, tick func()) *countdown {
	c := &countdown{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go c.run(tick)
	return c
}

func (c *countdown) run(tick func()) {
	defer close(c.exited)
	defer c.ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			// Prefer stopping over a tick that raced with stop.
			select {
			case <-c.done:
				return
			default:
			}
			tick()
		}
	}
}

// stop never blocks: the goroutine may be waiting on the session lock held by the caller.
func (c *countdown) stop() {
	c.once.Do(func() { close(c.done) })
}

// Tick takes one second off the countdown. The session's ticker calls it;
// callers that drive time themselves may call it directly.
// Reaching zero expires the session exactly once.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.closed || s.attempt.Status != model.AttemptStatusInProgress {
		s.mu.Unlock()
		return
	}

	if s.attempt.TimeRemainingSeconds > 0 {
		s.attempt.TimeRemainingSeconds--
	}
	events := []Event{s.eventLocked(EventTick, nil)}
	if s.attempt.TimeRemainingSeconds == 0 {
		events = append(events, s.expireLocked()...)
	}
	s.mu.Unlock()

	s.dispatch(events)
}

// TimeRemaining returns the seconds left on the countdown.
func (s *Session) TimeRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.TimeRemainingSeconds
}

func (s *Session) expireLocked() []Event {
	if err := s.transitionLocked("expire", model.AttemptStatusExpired); err != nil {
		return nil
	}
	s.attempt.TimeRemainingSeconds = 0
	s.scoreLocked()
	now := s.now()
	s.attempt.CompletedAt = &now
	return []Event{s.eventLocked(EventExpired, nil)}
}

func (s *Session) stopTimersLocked() {
	if s.timer != nil {
		s.timer.stop()
		s.timer = nil
	}
	s.cancelAdvanceLocked()
}
