package engine

import (
	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// Answer records the response for a question, replacing any earlier one.
// Correctness is decided by value against the answer key, so option shuffling
// never affects grading. Answering the current question schedules an
// auto-advance, or marks the session ready to submit on the last question.
func (s *Session) Answer(questionID uuid.UUID, answer string, elapsedSeconds float64) (model.Response, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Response{}, ErrSessionClosed
	}
	if s.attempt.Status != model.AttemptStatusInProgress {
		st := s.attempt.Status
		s.mu.Unlock()
		return model.Response{}, &TransitionError{Op: "answer", Status: st}
	}

	idx, ok := s.index[questionID]
	if !ok {
		s.mu.Unlock()
		return model.Response{}, ErrUnknownQuestion
	}
	q := s.attempt.Questions[idx]
	if !q.HasOption(answer) {
		s.mu.Unlock()
		return model.Response{}, ErrInvalidAnswer
	}

	now := s.now()
	if elapsedSeconds <= 0 && idx == s.attempt.CurrentIndex && !s.shownAt.IsZero() {
		elapsedSeconds = now.Sub(s.shownAt).Seconds()
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	value := answer
	resp := model.Response{
		QuestionID:       questionID,
		UserAnswer:       &value,
		IsCorrect:        answer == q.CorrectAnswer,
		TimeSpentSeconds: elapsedSeconds,
		AnsweredAt:       now,
	}
	s.attempt.Responses[questionID] = resp

	qid := questionID
	events := []Event{s.eventLocked(EventAnswered, &qid)}
	if idx == s.attempt.CurrentIndex {
		if idx < len(s.attempt.Questions)-1 {
			events = append(events, s.scheduleAdvanceLocked(questionID, idx)...)
		} else {
			events = append(events, s.eventLocked(EventReadyToSubmit, &qid))
		}
	}
	s.mu.Unlock()

	s.dispatch(events)
	return resp, nil
}

// Clear removes the response for a question, leaving it skipped. A pending
// auto-advance triggered by that question is cancelled.
func (s *Session) Clear(questionID uuid.UUID) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.attempt.Status != model.AttemptStatusInProgress {
		st := s.attempt.Status
		s.mu.Unlock()
		return &TransitionError{Op: "clear an answer", Status: st}
	}
	if _, ok := s.index[questionID]; !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	if _, ok := s.attempt.Responses[questionID]; !ok {
		s.mu.Unlock()
		return nil
	}

	delete(s.attempt.Responses, questionID)
	if s.advance != nil && s.advance.questionID == questionID {
		s.cancelAdvanceLocked()
	}

	qid := questionID
	events := []Event{s.eventLocked(EventCleared, &qid)}
	s.mu.Unlock()

	s.dispatch(events)
	return nil
}

// Response returns the recorded response for a question, if any.
func (s *Session) Response(questionID uuid.UUID) (model.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.attempt.Responses[questionID]
	return r, ok
}
