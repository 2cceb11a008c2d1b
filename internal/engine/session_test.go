package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

type fakeSource struct {
	questions []model.Question
	err       error
	calls     int
	last      model.QuestionFilter
}

func (f *fakeSource) FetchQuestions(_ context.Context, filter model.QuestionFilter) ([]model.Question, error) {
	f.calls++
	f.last = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

type fakeTask struct {
	s       *fakeScheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler holds callbacks until the test fires them.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Canceler {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{s: s, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) fireAll() int {
	s.mu.Lock()
	var due []*fakeTask
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func makeQuestions(n int, categories ...string) []model.Question {
	if len(categories) == 0 {
		categories = []string{"General"}
	}
	out := make([]model.Question, n)
	for i := range out {
		out[i] = model.Question{
			ID:            uuid.New(),
			Text:          fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Category:      categories[i%len(categories)],
			Difficulty:    model.DifficultyEasy,
			Type:          "multiple_choice",
			Points:        1,
			Explanation:   fmt.Sprintf("Because %d", i+1),
		}
	}
	return out
}

type harness struct {
	session   *Session
	scheduler *fakeScheduler
	events    *eventLog
}

func newHarness(t *testing.T, n int, cfg *model.QuizConfig) *harness {
	t.Helper()

	if cfg == nil {
		cfg = &model.QuizConfig{NumQuestions: n, Difficulty: model.DifficultyMixed}
	}
	src := &fakeSource{questions: makeQuestions(n)}
	gen := NewGenerator(src, 30, rand.New(rand.NewSource(1)))

	h := &harness{scheduler: &fakeScheduler{}, events: &eventLog{}}
	s, err := gen.Generate(context.Background(), cfg, Options{
		UserID:       7,
		AdvanceDelay: 800 * time.Millisecond,
		Observer:     h.events,
		Scheduler:    h.scheduler,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s.Start()
	t.Cleanup(s.Close)
	h.session = s
	return h
}

func (h *harness) question(i int) model.Question {
	return h.session.Snapshot().Questions[i]
}

func TestStartEmitsStartedOnce(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.session.Start()

	if got := h.events.count(EventStarted); got != 1 {
		t.Fatalf("started events = %d, want 1", got)
	}
	if h.session.Status() != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", h.session.Status())
	}
	if h.session.UserID() != 7 {
		t.Fatalf("user id = %d, want 7", h.session.UserID())
	}
}

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to model.AttemptStatus
		want     bool
	}{
		{model.AttemptStatusInProgress, model.AttemptStatusSubmitting, true},
		{model.AttemptStatusInProgress, model.AttemptStatusExpired, true},
		{model.AttemptStatusInProgress, model.AttemptStatusAbandoned, true},
		{model.AttemptStatusInProgress, model.AttemptStatusCompleted, false},
		{model.AttemptStatusSubmitting, model.AttemptStatusCompleted, true},
		{model.AttemptStatusSubmitting, model.AttemptStatusExpired, false},
		{model.AttemptStatusCompleted, model.AttemptStatusInProgress, false},
		{model.AttemptStatusExpired, model.AttemptStatusCompleted, false},
		{model.AttemptStatusAbandoned, model.AttemptStatusSubmitting, false},
	}
	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t, 3, nil)
	q := h.question(0)
	if _, err := h.session.Answer(q.ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	snap := h.session.Snapshot()
	delete(snap.Responses, q.ID)
	snap.Questions[0].Text = "changed"

	if _, ok := h.session.Response(q.ID); !ok {
		t.Fatalf("mutating a snapshot removed a live response")
	}
	if h.question(0).Text == "changed" {
		t.Fatalf("mutating a snapshot changed a live question")
	}
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t, 3, nil)
	q := h.question(0)
	if _, err := h.session.Answer(q.ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	h.session.Close()

	if h.scheduler.pending() != 0 {
		t.Fatalf("pending advances after Close = %d, want 0", h.scheduler.pending())
	}
	if _, err := h.session.Answer(q.ID, "B", 1); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Answer after Close error = %v, want ErrSessionClosed", err)
	}
	if _, err := h.session.Submit(context.Background(), nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Submit after Close error = %v, want ErrSessionClosed", err)
	}
	if h.session.Status() != model.AttemptStatusInProgress {
		t.Fatalf("Close changed status to %s", h.session.Status())
	}
	if !h.session.Closed() {
		t.Fatalf("Closed() = false after Close")
	}
}

func TestRestore(t *testing.T) {
	h := newHarness(t, 3, nil)
	q := h.question(0)
	if _, err := h.session.Answer(q.ID, "A", 2); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	snap := h.session.Snapshot()
	h.session.Close()

	t.Run("keeps progress", func(t *testing.T) {
		snap := snap
		snap.CurrentIndex = 10
		s := Restore(snap, Options{Scheduler: &fakeScheduler{}})
		s.Start()
		defer s.Close()

		got := s.Snapshot()
		if got.CurrentIndex != 2 {
			t.Fatalf("restored index = %d, want clamped 2", got.CurrentIndex)
		}
		if got.PendingAdvance {
			t.Fatalf("restored session should not carry a pending advance")
		}
		if r, ok := got.Responses[q.ID]; !ok || !r.IsCorrect {
			t.Fatalf("restored response = %+v, %v", r, ok)
		}
		if s.UserID() != 7 {
			t.Fatalf("restored user id = %d, want 7", s.UserID())
		}
	})

	t.Run("expires without time", func(t *testing.T) {
		snap := snap
		snap.TimeRemainingSeconds = 0
		log := &eventLog{}
		s := Restore(snap, Options{Observer: log, Scheduler: &fakeScheduler{}})
		s.Start()
		defer s.Close()

		if s.Status() != model.AttemptStatusExpired {
			t.Fatalf("status = %s, want EXPIRED", s.Status())
		}
		if log.count(EventExpired) != 1 {
			t.Fatalf("expired events = %d, want 1", log.count(EventExpired))
		}
		if got := s.Snapshot(); got.CorrectCount != 1 || got.ScorePercent != 33 {
			t.Fatalf("expired score = %d/%d%%, want 1/33%%", got.CorrectCount, got.ScorePercent)
		}
	})
}

func TestEventVersionsIncrease(t *testing.T) {
	h := newHarness(t, 3, nil)
	if _, err := h.session.Answer(h.question(0).ID, "A", 1); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	h.scheduler.fireAll()
	h.session.Tick()

	h.events.mu.Lock()
	events := append([]Event(nil), h.events.events...)
	h.events.mu.Unlock()

	var last uint64
	for i, ev := range events {
		if ev.Version <= last {
			t.Fatalf("event %d (%s) version %d, previous %d", i, ev.Type, ev.Version, last)
		}
		last = ev.Version
	}
	if got := h.session.Snapshot().Version; got != last {
		t.Fatalf("snapshot version = %d, want %d", got, last)
	}
}
