package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// Canceler stops a scheduled callback. *time.Timer satisfies it.
type Canceler interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Canceler
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Canceler {
	return time.AfterFunc(d, f)
}

// pendingAdvance is the single in-flight auto-advance, keyed by the answered
// question and a sequence number so a stale callback can recognise itself.
type pendingAdvance struct {
	questionID uuid.UUID
	fromIndex  int
	seq        uint64
	handle     Canceler
}

// Next moves to the following question. No-op on the last question.
func (s *Session) Next() int {
	return s.navigate(func(cur int) int { return cur + 1 })
}

// Previous moves to the preceding question. No-op on the first question.
func (s *Session) Previous() int {
	return s.navigate(func(cur int) int { return cur - 1 })
}

// GoTo jumps to index i, clamped to the question range.
func (s *Session) GoTo(i int) int {
	return s.navigate(func(int) int { return i })
}

// CurrentIndex returns the question pointer.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.CurrentIndex
}

func (s *Session) navigate(target func(cur int) int) int {
	s.mu.Lock()
	if s.closed || s.attempt.Status != model.AttemptStatusInProgress {
		idx := s.attempt.CurrentIndex
		s.mu.Unlock()
		return idx
	}

	to := s.clampLocked(target(s.attempt.CurrentIndex))
	var events []Event
	if to != s.attempt.CurrentIndex {
		// Manual navigation wins over a pending auto-advance.
		s.cancelAdvanceLocked()
		events = s.moveLocked(to, EventNavigated)
	}
	idx := s.attempt.CurrentIndex
	s.mu.Unlock()

	s.dispatch(events)
	return idx
}

func (s *Session) clampLocked(i int) int {
	last := len(s.attempt.Questions) - 1
	if i > last {
		i = last
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (s *Session) moveLocked(to int, t EventType) []Event {
	to = s.clampLocked(to)
	if to == s.attempt.CurrentIndex {
		return nil
	}
	s.attempt.CurrentIndex = to
	s.shownAt = s.now()
	return []Event{s.eventLocked(t, nil)}
}

// scheduleAdvanceLocked cancels any pending advance and schedules a new one
// from the answered question. Only one advance can be pending at a time.
func (s *Session) scheduleAdvanceLocked(questionID uuid.UUID, from int) []Event {
	s.cancelAdvanceLocked()

	if s.opts.AdvanceDelay <= 0 {
		return s.moveLocked(from+1, EventAdvanced)
	}

	s.advanceSeq++
	seq := s.advanceSeq
	p := &pendingAdvance{questionID: questionID, fromIndex: from, seq: seq}
	s.advance = p
	s.attempt.PendingAdvance = true
	p.handle = s.scheduler.AfterFunc(s.opts.AdvanceDelay, func() { s.completeAdvance(seq) })
	return nil
}

func (s *Session) completeAdvance(seq uint64) {
	s.mu.Lock()
	p := s.advance
	if s.closed || p == nil || p.seq != seq || s.attempt.Status != model.AttemptStatusInProgress {
		s.mu.Unlock()
		return
	}
	s.advance = nil
	s.attempt.PendingAdvance = false

	var events []Event
	if s.attempt.CurrentIndex == p.fromIndex {
		events = s.moveLocked(p.fromIndex+1, EventAdvanced)
	}
	s.mu.Unlock()

	s.dispatch(events)
}

func (s *Session) cancelAdvanceLocked() {
	if s.advance == nil {
		return
	}
	if s.advance.handle != nil {
		s.advance.handle.Stop()
	}
	s.advance = nil
	s.attempt.PendingAdvance = false
}
