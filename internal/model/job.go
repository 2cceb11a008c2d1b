package model

import (
	"time"

	"github.com/google/uuid"
)

// Payloads pushed onto the Redis persistence queues and consumed by internal/worker.

// AnswerJob upserts or clears one response.
type AnswerJob struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	UserID           int       `json:"user_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	Answer           *string   `json:"answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// ScoreJob records a finished attempt.
type ScoreJob struct {
	AttemptID    uuid.UUID                `json:"attempt_id"`
	UserID       int                      `json:"user_id"`
	Status       AttemptStatus            `json:"status"`
	Config       QuizConfig               `json:"config"`
	CorrectCount int                      `json:"correct_count"`
	TotalCount   int                      `json:"total_count"`
	ScorePercent int                      `json:"score_percent"`
	PerCategory  map[string]CategoryScore `json:"per_category"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  time.Time                `json:"completed_at"`
}

// QuestionOrderJob registers a new attempt with the order its questions and
// options were served in.
type QuestionOrderJob struct {
	AttemptID   uuid.UUID              `json:"attempt_id"`
	UserID      int                    `json:"user_id"`
	Config      QuizConfig             `json:"config"`
	Order       []uuid.UUID            `json:"order"`
	OptionOrder map[uuid.UUID][]string `json:"option_order"`
	StartedAt   time.Time              `json:"started_at"`
}

// AttemptEventJob is one lifecycle event in an attempt's audit trail.
type AttemptEventJob struct {
	AttemptID  uuid.UUID  `json:"attempt_id"`
	UserID     int        `json:"user_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Index      int        `json:"index"`
	Remaining  int        `json:"remaining"`
	QuestionID *uuid.UUID `json:"question_id,omitempty"`
	At         time.Time  `json:"at"`
}
