package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/stemsi/quizrun-backend/internal/model"
)

//go:embed demo_questions.json
var demoQuestionsJSON []byte

// DemoSource serves the fixed demo question set. It ignores the filter
// except for the count.
type DemoSource struct {
	questions []model.Question
}

// NewDemoSource parses the embedded demo set.
func NewDemoSource() (*DemoSource, error) {
	var questions []model.Question
	if err := json.Unmarshal(demoQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("parse demo questions: %w", err)
	}
	if !model.IsAllowedQuestionCount(len(questions)) {
		return nil, fmt.Errorf("demo set has %d questions, not an offered count", len(questions))
	}
	return &DemoSource{questions: questions}, nil
}

// Len returns the number of demo questions.
func (d *DemoSource) Len() int {
	return len(d.questions)
}

// FetchQuestions returns a copy of the demo set.
func (d *DemoSource) FetchQuestions(_ context.Context, filter model.QuestionFilter) ([]model.Question, error) {
	n := len(d.questions)
	if filter.Count > 0 && filter.Count < n {
		n = filter.Count
	}
	out := make([]model.Question, n)
	copy(out, d.questions[:n])
	return out, nil
}
