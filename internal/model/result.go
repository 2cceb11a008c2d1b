package model

import "github.com/google/uuid"

// CategoryScore is the correctness tally for one category.
type CategoryScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// Result is derived from a scored attempt on demand and never stored on its own.
type Result struct {
	AttemptID      uuid.UUID                `json:"attempt_id"`
	Status         AttemptStatus            `json:"status"`
	ScorePercent   int                      `json:"score_percent"`
	CorrectCount   int                      `json:"correct_count"`
	TotalCount     int                      `json:"total_count"`
	AnsweredCount  int                      `json:"answered_count"`
	SkippedCount   int                      `json:"skipped_count"`
	PointsEarned   int                      `json:"points_earned"`
	PointsPossible int                      `json:"points_possible"`
	TimeSpent      float64                  `json:"time_spent_seconds"`
	PerCategory    map[string]CategoryScore `json:"per_category"`
}

// ReviewFilter selects which questions a review returns.
type ReviewFilter string

const (
	ReviewAll       ReviewFilter = "all"
	ReviewCorrect   ReviewFilter = "correct"
	ReviewIncorrect ReviewFilter = "incorrect"
	ReviewSkipped   ReviewFilter = "skipped"
)

// Outcome classifies a question after scoring.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
)

// ReviewItem is one question in a post-quiz review.
type ReviewItem struct {
	Index    int       `json:"index"`
	Question Question  `json:"question"`
	Response *Response `json:"response,omitempty"`
	Outcome  Outcome   `json:"outcome"`
}
