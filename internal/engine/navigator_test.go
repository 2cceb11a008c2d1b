package engine

import (
	"testing"

	"github.com/stemsi/quizrun-backend/internal/model"
)

func TestRapidReanswerAdvancesOnce(t *testing.T) {
	h := newHarness(t, 5, nil)
	q := h.question(1)
	if got := h.session.GoTo(1); got != 1 {
		t.Fatalf("GoTo(1) = %d", got)
	}

	if _, err := h.session.Answer(q.ID, "B", 1); err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	h.scheduler.mu.Lock()
	stale := h.scheduler.tasks[0].f
	h.scheduler.mu.Unlock()

	if _, err := h.session.Answer(q.ID, "A", 2); err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if got := h.scheduler.pending(); got != 1 {
		t.Fatalf("pending advances = %d, want 1", got)
	}
	if !h.session.Snapshot().PendingAdvance {
		t.Fatalf("PendingAdvance = false while an advance is scheduled")
	}

	h.scheduler.fireAll()
	stale()

	if got := h.session.CurrentIndex(); got != 2 {
		t.Fatalf("index = %d, want 2", got)
	}
	if got := h.events.count(EventAdvanced); got != 1 {
		t.Fatalf("advanced events = %d, want 1", got)
	}
	r, _ := h.session.Response(q.ID)
	if r.UserAnswer == nil || *r.UserAnswer != "A" || !r.IsCorrect {
		t.Fatalf("recorded response = %+v, want latest answer A", r)
	}
	if h.session.Snapshot().PendingAdvance {
		t.Fatalf("PendingAdvance still set after advancing")
	}
}

func TestManualNavigationCancelsAdvance(t *testing.T) {
	h := newHarness(t, 5, nil)
	q := h.question(0)
	if _, err := h.session.Answer(q.ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if got := h.session.GoTo(3); got != 3 {
		t.Fatalf("GoTo(3) = %d", got)
	}
	if fired := h.scheduler.fireAll(); fired != 0 {
		t.Fatalf("fired %d advances after manual navigation", fired)
	}
	if got := h.session.CurrentIndex(); got != 3 {
		t.Fatalf("index = %d, want 3", got)
	}
}

func TestAnsweringOtherQuestionDoesNotAdvance(t *testing.T) {
	h := newHarness(t, 5, nil)
	q := h.question(3)
	if _, err := h.session.Answer(q.ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := h.scheduler.pending(); got != 0 {
		t.Fatalf("pending advances = %d, want 0", got)
	}
}

func TestLastQuestionWaitsForSubmit(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.session.GoTo(2)
	q := h.question(2)
	if _, err := h.session.Answer(q.ID, "C", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if got := h.scheduler.pending(); got != 0 {
		t.Fatalf("pending advances on last question = %d, want 0", got)
	}
	if !h.session.Snapshot().ReadyToSubmit {
		t.Fatalf("ReadyToSubmit = false after answering the last question")
	}
	if h.events.count(EventReadyToSubmit) != 1 {
		t.Fatalf("ready_to_submit events = %d, want 1", h.events.count(EventReadyToSubmit))
	}
	if h.session.Status() != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS until submit", h.session.Status())
	}
}

func TestNavigationClamps(t *testing.T) {
	h := newHarness(t, 3, nil)

	if got := h.session.Previous(); got != 0 {
		t.Fatalf("Previous at start = %d, want 0", got)
	}
	if got := h.session.GoTo(99); got != 2 {
		t.Fatalf("GoTo(99) = %d, want 2", got)
	}
	if got := h.session.Next(); got != 2 {
		t.Fatalf("Next at end = %d, want 2", got)
	}
	if got := h.session.GoTo(-4); got != 0 {
		t.Fatalf("GoTo(-4) = %d, want 0", got)
	}
	if got := h.session.Next(); got != 1 {
		t.Fatalf("Next = %d, want 1", got)
	}
	if got := h.events.count(EventNavigated); got != 3 {
		t.Fatalf("navigated events = %d, want 3", got)
	}
}

func TestNavigationIgnoredOutsideInProgress(t *testing.T) {
	h := newHarness(t, 3, nil)
	if err := h.session.Abandon(); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if got := h.session.Next(); got != 0 {
		t.Fatalf("Next after abandon = %d, want 0", got)
	}
	if got := h.session.GoTo(2); got != 0 {
		t.Fatalf("GoTo after abandon = %d, want 0", got)
	}
}

func TestZeroAdvanceDelayMovesImmediately(t *testing.T) {
	gen := NewGenerator(&fakeSource{questions: makeQuestions(3)}, 30, nil)
	s, err := gen.Generate(t.Context(), &model.QuizConfig{NumQuestions: 3}, Options{Scheduler: &fakeScheduler{}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer s.Close()

	q := s.Snapshot().Questions[0]
	if _, err := s.Answer(q.ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := s.CurrentIndex(); got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}
