package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestInProgressViewKeepsAnswerKeyServerSide(t *testing.T) {
	q := Question{
		ID:            uuid.New(),
		Text:          "Pick one",
		Options:       []string{"alpha key", "beta"},
		CorrectAnswer: "alpha key",
		Explanation:   "explained here",
		Category:      "Ethics",
		Points:        1,
	}
	picked := "beta"
	a := Attempt{
		ID:        uuid.New(),
		Status:    AttemptStatusInProgress,
		Questions: []Question{q},
		Responses: map[uuid.UUID]Response{
			q.ID: {QuestionID: q.ID, UserAnswer: &picked, IsCorrect: false, AnsweredAt: time.Now()},
		},
	}

	raw, err := json.Marshal(a.View())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "correct_answer") || strings.Contains(body, "explained here") {
		t.Fatalf("view leaks the answer key: %s", body)
	}
	if !strings.Contains(body, `"is_correct":false`) {
		t.Fatalf("view drops per-response feedback: %s", body)
	}
	if strings.Contains(body, "score_percent") {
		t.Fatalf("in-progress view carries a score: %s", body)
	}
}
