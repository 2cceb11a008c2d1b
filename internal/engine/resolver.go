// Package engine runs quiz sessions: it validates configurations, generates
// sessions from a question source, and drives each session's countdown,
// navigation, answers, submission and scoring.
package engine

import (
	"fmt"
	"strings"

	"github.com/stemsi/quizrun-backend/internal/model"
)

// Resolve validates a raw selection against an inventory snapshot.
// It has no side effects.
func Resolve(sel model.QuizSelection, inv model.Inventory) (*model.QuizConfig, error) {
	if !model.IsAllowedQuestionCount(sel.NumQuestions) {
		return nil, &ConfigError{
			Reason:    fmt.Sprintf("question count %d is not offered", sel.NumQuestions),
			Requested: sel.NumQuestions,
		}
	}

	difficulty := model.DifficultyMixed
	if strings.TrimSpace(sel.Difficulty) != "" {
		d, ok := model.ParseDifficulty(sel.Difficulty)
		if !ok {
			return nil, &ConfigError{
				Reason:    fmt.Sprintf("unknown difficulty %q", sel.Difficulty),
				Requested: sel.NumQuestions,
			}
		}
		difficulty = d
	}

	if sel.TimeLimitSeconds < 0 {
		return nil, &ConfigError{Reason: "time limit cannot be negative", Requested: sel.NumQuestions}
	}

	categories := dedupe(sel.Categories)
	types := dedupe(sel.Types)

	available := TotalAvailable(inv, categories)
	if available < sel.NumQuestions {
		return nil, &ConfigError{
			Reason:    fmt.Sprintf("only %d questions available, %d requested", available, sel.NumQuestions),
			Requested: sel.NumQuestions,
			Available: available,
		}
	}

	return &model.QuizConfig{
		NumQuestions:        sel.NumQuestions,
		Difficulty:          difficulty,
		Categories:          categories,
		Types:               types,
		TimeLimitSeconds:    sel.TimeLimitSeconds,
		IncludeExplanations: sel.IncludeExplanations,
	}, nil
}

// TotalAvailable sums the counts of the selected categories, or of every
// category when none is selected. Unknown categories count as zero.
func TotalAvailable(inv model.Inventory, categories []string) int {
	total := 0
	if len(categories) == 0 {
		for _, n := range inv.Categories {
			total += n
		}
		return total
	}
	for _, c := range categories {
		total += inv.Categories[c]
	}
	return total
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
