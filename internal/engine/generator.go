package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// DefaultPerQuestionSeconds is used when a config carries no explicit time limit.
const DefaultPerQuestionSeconds = 30

// QuestionSource supplies questions matching a filter.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, filter model.QuestionFilter) ([]model.Question, error)
}

// Generator turns a validated config into a ready session.
type Generator struct {
	source             QuestionSource
	perQuestionSeconds int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds a Generator. A nil rng is seeded from the clock.
func NewGenerator(source QuestionSource, perQuestionSeconds int, rng *rand.Rand) *Generator {
	if perQuestionSeconds <= 0 {
		perQuestionSeconds = DefaultPerQuestionSeconds
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{source: source, perQuestionSeconds: perQuestionSeconds, rng: rng}
}

// Generate fetches questions once, shuffles each question's options and
// returns an IN_PROGRESS session that has not been started yet.
func (g *Generator) Generate(ctx context.Context, cfg *model.QuizConfig, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{Requested: cfg.NumQuestions, Err: err}
	}

	questions, err := g.source.FetchQuestions(ctx, cfg.Filter())
	if err != nil {
		return nil, &GenerationError{Requested: cfg.NumQuestions, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{Requested: cfg.NumQuestions, Received: len(questions), Err: err}
	}
	if len(questions) < cfg.NumQuestions {
		return nil, &GenerationError{Requested: cfg.NumQuestions, Received: len(questions)}
	}
	questions = questions[:cfg.NumQuestions]

	out := make([]model.Question, len(questions))
	g.mu.Lock()
	for i, q := range questions {
		q.Options = g.shuffled(q.Options)
		out[i] = q
	}
	g.mu.Unlock()

	limit := cfg.TimeLimitSeconds
	if limit <= 0 {
		limit = cfg.NumQuestions * g.perQuestionSeconds
	}

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	attempt := model.Attempt{
		ID:                   uuid.New(),
		UserID:               opts.UserID,
		Demo:                 opts.Demo,
		Config:               *cfg,
		Questions:            out,
		Responses:            make(map[uuid.UUID]model.Response),
		TimeRemainingSeconds: limit,
		Status:               model.AttemptStatusInProgress,
		StartedAt:            now,
	}
	return newSession(attempt, opts), nil
}

// shuffled returns a Fisher-Yates permutation of a copy of in. g.mu must be held.
func (g *Generator) shuffled(in []string) []string {
	out := append([]string(nil), in...)
	for i := len(out) - 1; i > 0; i-- {
		j := g.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
