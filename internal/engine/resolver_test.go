package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stemsi/quizrun-backend/internal/model"
)

func TestResolve(t *testing.T) {
	inv := model.Inventory{
		Categories: map[string]int{"AI Safety": 3, "Ethics": 12, "Policy": 40},
		Types:      map[string]int{"multiple_choice": 50, "true_false": 5},
	}

	cases := []struct {
		name      string
		sel       model.QuizSelection
		inv       model.Inventory
		wantErr   bool
		available int
	}{
		{
			name:      "not enough questions in selected category",
			sel:       model.QuizSelection{NumQuestions: 5, Categories: []string{"AI Safety"}},
			inv:       inv,
			wantErr:   true,
			available: 3,
		},
		{
			name:      "unknown category counts as zero",
			sel:       model.QuizSelection{NumQuestions: 3, Categories: []string{"Nope"}},
			inv:       inv,
			wantErr:   true,
			available: 0,
		},
		{
			name:    "count not offered",
			sel:     model.QuizSelection{NumQuestions: 7},
			inv:     inv,
			wantErr: true,
		},
		{
			name:    "unknown difficulty",
			sel:     model.QuizSelection{NumQuestions: 3, Difficulty: "Brutal"},
			inv:     inv,
			wantErr: true,
		},
		{
			name:    "negative time limit",
			sel:     model.QuizSelection{NumQuestions: 3, TimeLimitSeconds: -1},
			inv:     inv,
			wantErr: true,
		},
		{
			name:    "empty inventory",
			sel:     model.QuizSelection{NumQuestions: 3},
			inv:     model.Inventory{},
			wantErr: true,
		},
		{
			name: "no categories sums everything",
			sel:  model.QuizSelection{NumQuestions: 50},
			inv:  inv,
		},
		{
			name: "selected categories add up",
			sel:  model.QuizSelection{NumQuestions: 10, Categories: []string{"AI Safety", "Ethics"}},
			inv:  inv,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Resolve(tc.sel, tc.inv)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("Resolve error = %v", err)
				}
				if cfg.NumQuestions != tc.sel.NumQuestions {
					t.Fatalf("NumQuestions = %d, want %d", cfg.NumQuestions, tc.sel.NumQuestions)
				}
				return
			}

			if !errors.Is(err, ErrConfigRejected) {
				t.Fatalf("Resolve error = %v, want ErrConfigRejected", err)
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Resolve error %T is not a *ConfigError", err)
			}
			if cerr.Reason == "" {
				t.Fatalf("ConfigError without a reason")
			}
			if cerr.Available != tc.available {
				t.Fatalf("Available = %d, want %d", cerr.Available, tc.available)
			}
		})
	}
}

func TestResolveNormalizes(t *testing.T) {
	inv := model.Inventory{Categories: map[string]int{"Ethics": 10, "Policy": 10}}
	sel := model.QuizSelection{
		NumQuestions: 5,
		Difficulty:   "hard",
		Categories:   []string{"Ethics", " Ethics ", "Policy", ""},
		Types:        []string{"true_false", "true_false"},
	}

	cfg, err := Resolve(sel, inv)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if cfg.Difficulty != model.DifficultyHard {
		t.Fatalf("Difficulty = %q, want Hard", cfg.Difficulty)
	}
	if !reflect.DeepEqual(cfg.Categories, []string{"Ethics", "Policy"}) {
		t.Fatalf("Categories = %v", cfg.Categories)
	}
	if !reflect.DeepEqual(cfg.Types, []string{"true_false"}) {
		t.Fatalf("Types = %v", cfg.Types)
	}

	sel.Difficulty = ""
	cfg, err = Resolve(sel, inv)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if cfg.Difficulty != model.DifficultyMixed {
		t.Fatalf("empty difficulty resolved to %q, want Mixed", cfg.Difficulty)
	}
}

func TestResolveNeverApprovesShortInventory(t *testing.T) {
	for _, n := range model.AllowedQuestionCounts {
		for available := 0; available <= 60; available += 3 {
			inv := model.Inventory{Categories: map[string]int{"Only": available}}
			_, err := Resolve(model.QuizSelection{NumQuestions: n}, inv)
			if available < n && err == nil {
				t.Fatalf("approved %d questions with %d available", n, available)
			}
			if available >= n && err != nil {
				t.Fatalf("rejected %d questions with %d available: %v", n, available, err)
			}
		}
	}
}
