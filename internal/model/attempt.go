package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates quiz session states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitting AttemptStatus = "SUBMITTING"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
	AttemptStatusExpired    AttemptStatus = "EXPIRED"
)

// Terminal reports whether no further mutation is permitted.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptStatusCompleted, AttemptStatusAbandoned, AttemptStatusExpired:
		return true
	}
	return false
}

// Scored reports whether a score exists for the status.
func (s AttemptStatus) Scored() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusExpired
}

// Response is a user's answer to one question. At most one per question.
type Response struct {
	QuestionID       uuid.UUID `json:"question_id"`
	UserAnswer       *string   `json:"user_answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// Attempt is the full state of one quiz session, from generation to a terminal status.
type Attempt struct {
	ID                   uuid.UUID              `json:"id"`
	UserID               int                    `json:"user_id"`
	Demo                 bool                   `json:"demo"`
	Config               QuizConfig             `json:"config"`
	Questions            []Question             `json:"questions"`
	Responses            map[uuid.UUID]Response `json:"responses"`
	CurrentIndex         int                    `json:"current_index"`
	TimeRemainingSeconds int                    `json:"time_remaining_seconds"`
	Status               AttemptStatus          `json:"status"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	CorrectCount         int                    `json:"correct_count"`
	ScorePercent         int                    `json:"score_percent"`
	PendingAdvance       bool                   `json:"pending_advance"`
	ReadyToSubmit        bool                   `json:"ready_to_submit"`
	SnapshotAt           time.Time              `json:"snapshot_at"`
	// Version grows by one on every state change; stores refuse to overwrite
	// a snapshot with an older one.
	Version              uint64                 `json:"version"`
}

// Current returns the question under the pointer, or nil for an empty attempt.
func (a *Attempt) Current() *Question {
	if a.CurrentIndex < 0 || a.CurrentIndex >= len(a.Questions) {
		return nil
	}
	return &a.Questions[a.CurrentIndex]
}

// AttemptView is the attempt as presented to the quiz taker.
type AttemptView struct {
	ID                   uuid.UUID              `json:"id"`
	Demo                 bool                   `json:"demo"`
	Status               AttemptStatus          `json:"status"`
	Config               QuizConfig             `json:"config"`
	CurrentIndex         int                    `json:"current_index"`
	TotalQuestions       int                    `json:"total_questions"`
	AnsweredCount        int                    `json:"answered_count"`
	Progress             float64                `json:"progress"`
	TimeRemainingSeconds int                    `json:"time_remaining_seconds"`
	CurrentQuestion      *QuestionForTaker      `json:"current_question,omitempty"`
	Questions            []QuestionForTaker     `json:"questions"`
	Responses            map[uuid.UUID]Response `json:"responses"`
	PendingAdvance       bool                   `json:"pending_advance"`
	ReadyToSubmit        bool                   `json:"ready_to_submit"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	ScorePercent         *int                   `json:"score_percent,omitempty"`
}

// View builds the taker-facing projection. The correct option text stays on
// the server; each recorded response carries its own IsCorrect so the client
// can show per-question feedback as soon as an answer lands.
func (a *Attempt) View() AttemptView {
	questions := make([]QuestionForTaker, len(a.Questions))
	for i, q := range a.Questions {
		questions[i] = q.ForTaker()
	}

	v := AttemptView{
		ID:                   a.ID,
		Demo:                 a.Demo,
		Status:               a.Status,
		Config:               a.Config,
		CurrentIndex:         a.CurrentIndex,
		TotalQuestions:       len(a.Questions),
		AnsweredCount:        len(a.Responses),
		TimeRemainingSeconds: a.TimeRemainingSeconds,
		Questions:            questions,
		Responses:            a.Responses,
		PendingAdvance:       a.PendingAdvance,
		ReadyToSubmit:        a.ReadyToSubmit,
		StartedAt:            a.StartedAt,
		CompletedAt:          a.CompletedAt,
	}
	if v.Responses == nil {
		v.Responses = map[uuid.UUID]Response{}
	}
	if len(a.Questions) > 0 {
		v.Progress = float64(a.CurrentIndex+1) / float64(len(a.Questions))
		cur := questions[a.CurrentIndex]
		v.CurrentQuestion = &cur
	}
	if a.Status.Scored() {
		score := a.ScorePercent
		v.ScorePercent = &score
	}
	return v
}

// AnswerRequest is the payload for recording an answer.
type AnswerRequest struct {
	QuestionID     string  `json:"question_id" binding:"required,uuid"`
	Answer         string  `json:"answer" binding:"required,max=1000"`
	ElapsedSeconds float64 `json:"elapsed_seconds" binding:"min=0"`
}

// GoToRequest is the payload for jumping to a question.
type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// AttemptSummary is a persisted attempt row, listed in the user's history.
type AttemptSummary struct {
	ID           uuid.UUID                `json:"id"`
	UserID       int                      `json:"user_id"`
	Status       AttemptStatus            `json:"status"`
	ScorePercent int                      `json:"score_percent"`
	CorrectCount int                      `json:"correct_count"`
	TotalCount   int                      `json:"total_count"`
	PerCategory  map[string]CategoryScore `json:"per_category"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}
