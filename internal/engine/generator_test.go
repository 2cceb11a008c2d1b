package engine

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stemsi/quizrun-backend/internal/model"
)

func TestGenerate(t *testing.T) {
	src := &fakeSource{questions: makeQuestions(7)}
	gen := NewGenerator(src, 30, rand.New(rand.NewSource(42)))
	cfg := &model.QuizConfig{NumQuestions: 5, Difficulty: model.DifficultyEasy, Categories: []string{"General"}}

	s, err := gen.Generate(context.Background(), cfg, Options{UserID: 3, Scheduler: &fakeScheduler{}})
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	defer s.Close()

	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}
	if src.last.Count != 5 || src.last.Difficulty != model.DifficultyEasy {
		t.Fatalf("filter = %+v", src.last)
	}

	a := s.Snapshot()
	if len(a.Questions) != 5 {
		t.Fatalf("questions = %d, want 5 (truncated)", len(a.Questions))
	}
	if a.Status != model.AttemptStatusInProgress || a.CurrentIndex != 0 || len(a.Responses) != 0 {
		t.Fatalf("unexpected initial attempt: status=%s index=%d responses=%d", a.Status, a.CurrentIndex, len(a.Responses))
	}
	if a.TimeRemainingSeconds != 150 {
		t.Fatalf("time remaining = %d, want 150", a.TimeRemainingSeconds)
	}
	if a.UserID != 3 {
		t.Fatalf("user id = %d, want 3", a.UserID)
	}

	for _, q := range a.Questions {
		got := append([]string(nil), q.Options...)
		sort.Strings(got)
		if len(got) != 4 || got[0] != "A" || got[3] != "D" {
			t.Fatalf("shuffled options lost values: %v", q.Options)
		}
		if q.CorrectAnswer != "A" {
			t.Fatalf("correct answer changed to %q", q.CorrectAnswer)
		}
	}

	if src.questions[0].Options[0] != "A" || src.questions[0].Options[3] != "D" {
		t.Fatalf("source options were shuffled in place: %v", src.questions[0].Options)
	}
}

func TestGenerateExplicitTimeLimit(t *testing.T) {
	gen := NewGenerator(&fakeSource{questions: makeQuestions(3)}, 30, nil)
	s, err := gen.Generate(context.Background(), &model.QuizConfig{NumQuestions: 3, TimeLimitSeconds: 45}, Options{})
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	defer s.Close()

	if got := s.TimeRemaining(); got != 45 {
		t.Fatalf("time remaining = %d, want 45", got)
	}
}

func TestGenerateFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("too few questions", func(t *testing.T) {
		gen := NewGenerator(&fakeSource{questions: makeQuestions(2)}, 30, nil)
		s, err := gen.Generate(context.Background(), &model.QuizConfig{NumQuestions: 3}, Options{})
		if s != nil {
			t.Fatalf("session created on failure")
		}
		var gerr *GenerationError
		if !errors.As(err, &gerr) || !errors.Is(err, ErrGenerationFailed) {
			t.Fatalf("error = %v, want GenerationError", err)
		}
		if gerr.Requested != 3 || gerr.Received != 2 {
			t.Fatalf("GenerationError = %+v", gerr)
		}
	})

	t.Run("source error", func(t *testing.T) {
		gen := NewGenerator(&fakeSource{err: boom}, 30, nil)
		_, err := gen.Generate(context.Background(), &model.QuizConfig{NumQuestions: 3}, Options{})
		if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, boom) {
			t.Fatalf("error = %v, want both ErrGenerationFailed and source error", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		src := &fakeSource{questions: makeQuestions(3)}
		gen := NewGenerator(src, 30, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := gen.Generate(ctx, &model.QuizConfig{NumQuestions: 3}, Options{})
		if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want canceled generation", err)
		}
		if src.calls != 0 {
			t.Fatalf("source called %d times with a canceled context", src.calls)
		}
	})
}

func TestShufflePreservesCorrectness(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		questions := makeQuestions(5)
		for i := range questions {
			questions[i].CorrectAnswer = questions[i].Options[i%4]
		}
		gen := NewGenerator(&fakeSource{questions: questions}, 30, rand.New(rand.NewSource(seed)))
		s, err := gen.Generate(context.Background(), &model.QuizConfig{NumQuestions: 5}, Options{Scheduler: &fakeScheduler{}})
		if err != nil {
			t.Fatalf("Generate error = %v", err)
		}

		for _, q := range s.Snapshot().Questions {
			r, err := s.Answer(q.ID, q.CorrectAnswer, 1)
			if err != nil {
				t.Fatalf("Answer error = %v", err)
			}
			if !r.IsCorrect {
				t.Fatalf("seed %d: correct text %q scored wrong with options %v", seed, q.CorrectAnswer, q.Options)
			}
		}
		s.Close()
	}
}
