package engine

import (
	"context"
	"math"

	"github.com/stemsi/quizrun-backend/internal/model"
)

// SubmissionSink persists a finished attempt.
type SubmissionSink interface {
	SubmitAttempt(ctx context.Context, attempt model.Attempt) error
}

// SubmissionSinkFunc adapts a function to SubmissionSink.
type SubmissionSinkFunc func(ctx context.Context, attempt model.Attempt) error

func (f SubmissionSinkFunc) SubmitAttempt(ctx context.Context, attempt model.Attempt) error {
	return f(ctx, attempt)
}

// Submit scores the attempt and hands it to sink. The score is computed once,
// on the move to SUBMITTING; a failed sink call leaves the session SUBMITTING
// so Submit can be called again. Concurrent calls while the sink is running
// get ErrSubmissionInFlight.
func (s *Session) Submit(ctx context.Context, sink SubmissionSink) (*model.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	var events []Event
	switch s.attempt.Status {
	case model.AttemptStatusInProgress:
		if err := s.transitionLocked("submit", model.AttemptStatusSubmitting); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.scoreLocked()
		events = append(events, s.eventLocked(EventSubmitting, nil))
	case model.AttemptStatusSubmitting:
		if s.submitting {
			s.mu.Unlock()
			return nil, ErrSubmissionInFlight
		}
	default:
		st := s.attempt.Status
		s.mu.Unlock()
		return nil, &TransitionError{Op: "submit", Status: st}
	}
	s.submitting = true
	attempt := s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(events)

	var err error
	if sink != nil {
		err = sink.SubmitAttempt(ctx, attempt)
	}

	s.mu.Lock()
	s.submitting = false
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if err != nil {
		events = []Event{s.eventLocked(EventSubmitFailed, nil)}
		s.mu.Unlock()
		s.dispatch(events)
		return nil, &SubmissionError{AttemptID: attempt.ID, Err: err}
	}

	if terr := s.transitionLocked("complete", model.AttemptStatusCompleted); terr != nil {
		s.mu.Unlock()
		return nil, terr
	}
	now := s.now()
	s.attempt.CompletedAt = &now
	events = []Event{s.eventLocked(EventCompleted, nil)}
	final := s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(events)

	result, aerr := Aggregate(final)
	if aerr != nil {
		return nil, aerr
	}
	return &result, nil
}

// Abandon ends an in-progress session without scoring it.
func (s *Session) Abandon() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := s.transitionLocked("abandon", model.AttemptStatusAbandoned); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.now()
	s.attempt.CompletedAt = &now
	events := []Event{s.eventLocked(EventAbandoned, nil)}
	s.mu.Unlock()

	s.dispatch(events)
	return nil
}

// scoreLocked fills CorrectCount and ScorePercent. Unanswered questions count as wrong.
func (s *Session) scoreLocked() {
	correct := 0
	for _, q := range s.attempt.Questions {
		if r, ok := s.attempt.Responses[q.ID]; ok && r.IsCorrect {
			correct++
		}
	}
	s.attempt.CorrectCount = correct
	s.attempt.ScorePercent = ScorePercent(correct, len(s.attempt.Questions))
}

// ScorePercent is round(100*correct/total), or 0 when total is 0.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
