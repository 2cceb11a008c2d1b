package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/engine"
	"github.com/stemsi/quizrun-backend/internal/model"
	"golang.org/x/sync/errgroup"
)

// ErrSessionNotFound is returned for unknown sessions and for sessions owned by someone else.
var ErrSessionNotFound = errors.New("quiz session not found")

// QuestionCatalog is the question bank: the live question source plus its inventory.
type QuestionCatalog interface {
	engine.QuestionSource
	CategoryCounts(ctx context.Context) (map[string]int, error)
	TypeCounts(ctx context.Context) (map[string]int, error)
}

// AttemptHistory lists persisted attempts.
type AttemptHistory interface {
	ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptSummary, int, error)
}

// AttemptStore is everything the quiz service keeps in Redis.
type AttemptStore interface {
	SnapshotStore
	JobQueue
	EventPublisher
	InventoryCache
}

// QuizService runs quiz sessions for users and wires them to storage.
type QuizService struct {
	cfg       config.QuizConfig
	catalog   QuestionCatalog
	history   AttemptHistory
	store     AttemptStore
	registry  *Registry
	generator *engine.Generator
	demo      *engine.Generator
	demoCount int
	log       zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	cfg config.QuizConfig,
	catalog QuestionCatalog,
	history AttemptHistory,
	store AttemptStore,
	registry *Registry,
	log zerolog.Logger,
) (*QuizService, error) {
	demoSource, err := NewDemoSource()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &QuizService{
		cfg:       cfg,
		catalog:   catalog,
		history:   history,
		store:     store,
		registry:  registry,
		generator: engine.NewGenerator(catalog, cfg.PerQuestionSeconds, rng),
		demo:      engine.NewGenerator(demoSource, cfg.PerQuestionSeconds, rand.New(rand.NewSource(rng.Int63()))),
		demoCount: demoSource.Len(),
		log:       log.With().Str("component", "quiz_service").Logger(),
	}, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Configuration
// ────────────────────────────────────────────────────────────────────────────

// Inventory returns category and type counts, from cache when fresh.
func (s *QuizService) Inventory(ctx context.Context) (model.Inventory, error) {
	if cached, err := s.store.CachedInventory(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Inventory cache read failed")
	} else if cached != nil {
		return *cached, nil
	}

	var cats, types map[string]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.catalog.CategoryCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = s.catalog.TypeCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Inventory{}, fmt.Errorf("load inventory: %w", err)
	}

	inv := model.Inventory{Categories: cats, Types: types}
	if err := s.store.CacheInventory(ctx, inv, s.cfg.InventoryTTL); err != nil {
		s.log.Warn().Err(err).Msg("Inventory cache write failed")
	}
	return inv, nil
}

// ValidateConfig dry-runs the resolver. A rejected selection is not an error.
func (s *QuizService) ValidateConfig(ctx context.Context, sel model.QuizSelection) (*model.ConfigValidation, error) {
	inv, err := s.Inventory(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := engine.Resolve(sel, inv)
	if err != nil {
		var cerr *engine.ConfigError
		if !errors.As(err, &cerr) {
			return nil, err
		}
		return &model.ConfigValidation{
			Valid:     false,
			Reason:    cerr.Reason,
			Requested: cerr.Requested,
			Available: cerr.Available,
		}, nil
	}

	return &model.ConfigValidation{
		Valid:     true,
		Config:    cfg,
		Requested: cfg.NumQuestions,
		Available: engine.TotalAvailable(inv, cfg.Categories),
	}, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Session lifecycle
// ────────────────────────────────────────────────────────────────────────────

// StartSession resolves the selection, generates a session and starts its countdown.
func (s *QuizService) StartSession(ctx context.Context, userID int, sel model.QuizSelection) (*model.AttemptView, error) {
	inv, err := s.Inventory(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := engine.Resolve(sel, inv)
	if err != nil {
		return nil, err
	}

	return s.start(ctx, s.generator, cfg, userID, false)
}

// StartDemo starts a session over the fixed demo set.
func (s *QuizService) StartDemo(ctx context.Context, userID int) (*model.AttemptView, error) {
	cfg := &model.QuizConfig{
		NumQuestions:        s.demoCount,
		Difficulty:          model.DifficultyMixed,
		IncludeExplanations: true,
	}
	return s.start(ctx, s.demo, cfg, userID, true)
}

func (s *QuizService) start(ctx context.Context, gen *engine.Generator, cfg *model.QuizConfig, userID int, demo bool) (*model.AttemptView, error) {
	obs := &attemptObserver{svc: s}
	sess, err := gen.Generate(ctx, cfg, s.sessionOptions(userID, demo, obs))
	if err != nil {
		return nil, err
	}
	obs.session = sess

	s.registry.GetOrAdd(sess)
	sess.Start()

	s.log.Info().
		Str("attempt_id", sess.ID().String()).
		Int("user_id", userID).
		Bool("demo", demo).
		Int("questions", cfg.NumQuestions).
		Msg("Session started")

	return view(sess), nil
}

func (s *QuizService) sessionOptions(userID int, demo bool, obs engine.Observer) engine.Options {
	return engine.Options{
		UserID:       userID,
		Demo:         demo,
		TickInterval: s.cfg.TickInterval,
		AdvanceDelay: s.cfg.AdvanceDelay,
		Observer:     obs,
	}
}

// session finds a live session, rehydrating it from its snapshot if this
// process does not hold it.
func (s *QuizService) session(ctx context.Context, userID int, id uuid.UUID) (*engine.Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		var err error
		sess, err = s.restore(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if sess.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *QuizService) restore(ctx context.Context, id uuid.UUID) (*engine.Session, error) {
	a, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.Status == model.AttemptStatusInProgress && !a.SnapshotAt.IsZero() {
		// The countdown kept running while nobody held the session.
		if elapsed := int(time.Since(a.SnapshotAt).Seconds()); elapsed > 0 {
			a.TimeRemainingSeconds -= elapsed
			if a.TimeRemainingSeconds < 0 {
				a.TimeRemainingSeconds = 0
			}
		}
	}

	obs := &attemptObserver{svc: s}
	sess := engine.Restore(*a, s.sessionOptions(a.UserID, a.Demo, obs))
	obs.session = sess

	actual, loaded := s.registry.GetOrAdd(sess)
	if loaded {
		return actual, nil
	}
	sess.Start()

	s.log.Info().
		Str("attempt_id", id.String()).
		Str("status", string(a.Status)).
		Int("time_remaining", a.TimeRemainingSeconds).
		Msg("Session rehydrated from snapshot")
	return sess, nil
}

// Attempt returns the taker's view of a session.
func (s *QuizService) Attempt(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return view(sess), nil
}

// ActiveAttempt returns the user's in-progress session, if any.
func (s *QuizService) ActiveAttempt(ctx context.Context, userID int) (*model.AttemptView, error) {
	id, err := s.store.ActiveAttempt(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Attempt(ctx, userID, id)
}

// Answer records an answer.
func (s *QuizService) Answer(ctx context.Context, userID int, id uuid.UUID, req model.AnswerRequest) (*model.AttemptView, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	qid, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, engine.ErrUnknownQuestion
	}
	if _, err := sess.Answer(qid, req.Answer, req.ElapsedSeconds); err != nil {
		return nil, err
	}
	return view(sess), nil
}

// ClearAnswer removes an answer, leaving the question skipped.
func (s *QuizService) ClearAnswer(ctx context.Context, userID int, id, questionID uuid.UUID) (*model.AttemptView, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Clear(questionID); err != nil {
		return nil, err
	}
	return view(sess), nil
}

// Next moves to the next question.
func (s *QuizService) Next(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
	return s.navigate(ctx, userID, id, (*engine.Session).Next)
}

// Previous moves to the previous question.
func (s *QuizService) Previous(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
	return s.navigate(ctx, userID, id, (*engine.Session).Previous)
}

// GoTo jumps to a question index.
func (s *QuizService) GoTo(ctx context.Context, userID int, id uuid.UUID, index int) (*model.AttemptView, error) {
	return s.navigate(ctx, userID, id, func(sess *engine.Session) int { return sess.GoTo(index) })
}

func (s *QuizService) navigate(ctx context.Context, userID int, id uuid.UUID, move func(*engine.Session) int) (*model.AttemptView, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	move(sess)
	return view(sess), nil
}

// Submit scores the session and queues it for persistence.
func (s *QuizService) Submit(ctx context.Context, userID int, id uuid.UUID) (*model.Result, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	res, err := sess.Submit(ctx, &queueSink{jobs: s.store})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("attempt_id", id.String()).
		Int("user_id", userID).
		Int("score", res.ScorePercent).
		Msg("Session submitted")
	return res, nil
}

// Abandon ends a session without scoring it.
func (s *QuizService) Abandon(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Abandon(); err != nil {
		return nil, err
	}
	return view(sess), nil
}

// Results aggregates a scored session.
func (s *QuizService) Results(ctx context.Context, userID int, id uuid.UUID) (*model.Result, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	res, err := sess.Result()
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Review returns the scored questions matching filter.
func (s *QuizService) Review(ctx context.Context, userID int, id uuid.UUID, filter model.ReviewFilter) ([]model.ReviewItem, error) {
	sess, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return sess.Review(filter)
}

// History lists the user's persisted attempts.
func (s *QuizService) History(ctx context.Context, userID, page, perPage int) ([]model.AttemptSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.history.ListByUser(ctx, userID, perPage, (page-1)*perPage)
}

// Owns reports whether userID may watch the session's events.
func (s *QuizService) Owns(ctx context.Context, userID int, id uuid.UUID) error {
	_, err := s.session(ctx, userID, id)
	return err
}

// RunJanitor evicts finished sessions until ctx is cancelled.
func (s *QuizService) RunJanitor(ctx context.Context) {
	interval := s.cfg.SessionRetention / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	s.registry.Run(ctx, interval, func(removed int) {
		s.log.Debug().Int("removed", removed).Int("live", s.registry.Len()).Msg("Evicted finished sessions")
	})
}

// Shutdown closes every live session. Snapshots stay in Redis, so sessions
// resume on the next process.
func (s *QuizService) Shutdown() {
	n := s.registry.CloseAll()
	s.log.Info().Int("sessions", n).Msg("Closed live sessions")
}

func view(sess *engine.Session) *model.AttemptView {
	a := sess.Snapshot()
	v := a.View()
	return &v
}

// LiveSessions returns the number of sessions held by this process.
func (s *QuizService) LiveSessions() int {
	return s.registry.Len()
}
