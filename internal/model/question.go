package model

import (
	"strings"

	"github.com/google/uuid"
)

// Difficulty enumerates the difficulty levels a quiz can be generated for.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
	DifficultyMixed  Difficulty = "Mixed"
)

// ParseDifficulty matches s case-insensitively against the known levels.
func ParseDifficulty(s string) (Difficulty, bool) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, true
		}
	}
	return "", false
}

// Question is a single quiz question as generated for a session.
// Options may be a session-local shuffle of the stored order.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	ImageRef      *string    `json:"image_ref,omitempty"`
	Category      string     `json:"category"`
	Difficulty    Difficulty `json:"difficulty"`
	Type          string     `json:"type"`
	Points        int        `json:"points"`
	Explanation   string     `json:"explanation,omitempty"`
}

// QuestionForTaker is a question without its answer key, sent while the quiz runs.
type QuestionForTaker struct {
	ID         uuid.UUID  `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	ImageRef   *string    `json:"image_ref,omitempty"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Type       string     `json:"type"`
	Points     int        `json:"points"`
}

// ForTaker strips the answer key and explanation.
func (q Question) ForTaker() QuestionForTaker {
	return QuestionForTaker{
		ID:         q.ID,
		Text:       q.Text,
		Options:    q.Options,
		ImageRef:   q.ImageRef,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Type:       q.Type,
		Points:     q.Points,
	}
}

// HasOption reports whether answer is one of the question's options.
func (q Question) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}

// QuestionFilter is what a question source is asked for.
type QuestionFilter struct {
	Count      int
	Difficulty Difficulty
	Categories []string
	Types      []string
}

// SeedQuestion is one entry of a JSON question bank imported by cmd/seed-questions.
type SeedQuestion struct {
	Text          string   `json:"text" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2,max=6"`
	CorrectAnswer string   `json:"correct_answer" binding:"required"`
	ImageRef      *string  `json:"image_ref"`
	Category      string   `json:"category" binding:"required"`
	Difficulty    string   `json:"difficulty" binding:"required,difficulty"`
	Type          string   `json:"type"`
	Points        int      `json:"points"`
	Explanation   string   `json:"explanation"`
}
