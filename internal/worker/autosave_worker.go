package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// AutosaveWorker consumes persist_answers_queue and mirrors responses into
// attempt_responses. A job without an answer deletes the row.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	b    *batcher[model.AnswerJob]
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	w := &AutosaveWorker{
		pool: pool,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
	w.b = &batcher[model.AnswerJob]{
		queue:   config.WorkerKey.PersistAnswersQueue,
		size:    BatchSize * 2,
		timeout: BatchTimeout,
		rdb:     rdb,
		log:     w.log,
		flush:   w.flush,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}

func (w *AutosaveWorker) flush(ctx context.Context, batch []model.AnswerJob) []model.AnswerJob {
	upserts, deletes := splitAnswers(latestAnswers(batch))

	if err := w.bulkUpsert(ctx, upserts); err != nil {
		w.log.Warn().Err(err).Int("count", len(upserts)).Msg("Bulk upsert failed, attempting row-by-row recovery")
		return append(w.fallback(ctx, upserts), w.deleteEach(ctx, deletes)...)
	}
	return w.deleteEach(ctx, deletes)
}

// latestAnswers keeps the last job per (attempt, question). One statement
// cannot upsert the same key twice.
func latestAnswers(batch []model.AnswerJob) []model.AnswerJob {
	type key struct{ attempt, question uuid.UUID }
	pos := make(map[key]int, len(batch))
	out := make([]model.AnswerJob, 0, len(batch))
	for _, j := range batch {
		k := key{j.AttemptID, j.QuestionID}
		if i, ok := pos[k]; ok {
			out[i] = j
			continue
		}
		pos[k] = len(out)
		out = append(out, j)
	}
	return out
}

func splitAnswers(jobs []model.AnswerJob) (upserts, deletes []model.AnswerJob) {
	for _, j := range jobs {
		if j.Answer == nil {
			deletes = append(deletes, j)
		} else {
			upserts = append(upserts, j)
		}
	}
	return upserts, deletes
}

func (w *AutosaveWorker) bulkUpsert(ctx context.Context, jobs []model.AnswerJob) error {
	if len(jobs) == 0 {
		return nil
	}

	n := len(jobs)
	attemptIDs := make([]uuid.UUID, n)
	questionIDs := make([]uuid.UUID, n)
	userIDs := make([]int, n)
	answers := make([]string, n)
	correct := make([]bool, n)
	spent := make([]float64, n)
	answeredAt := make([]time.Time, n)
	for i, j := range jobs {
		attemptIDs[i] = j.AttemptID
		questionIDs[i] = j.QuestionID
		userIDs[i] = j.UserID
		answers[i] = *j.Answer
		correct[i] = j.IsCorrect
		spent[i] = j.TimeSpentSeconds
		answeredAt[i] = j.AnsweredAt
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO attempt_responses
			(attempt_id, question_id, user_id, answer, is_correct, time_spent_seconds, answered_at)
		SELECT * FROM UNNEST(
			$1::uuid[], $2::uuid[], $3::int[], $4::text[], $5::bool[], $6::float8[], $7::timestamptz[]
		)
		ON CONFLICT (attempt_id, question_id) DO UPDATE
		SET answer = EXCLUDED.answer,
		    is_correct = EXCLUDED.is_correct,
		    time_spent_seconds = EXCLUDED.time_spent_seconds,
		    answered_at = EXCLUDED.answered_at,
		    updated_at = NOW()`,
		attemptIDs, questionIDs, userIDs, answers, correct, spent, answeredAt,
	)
	return err
}

func (w *AutosaveWorker) fallback(ctx context.Context, jobs []model.AnswerJob) []model.AnswerJob {
	var failed []model.AnswerJob
	for _, j := range jobs {
		if err := w.bulkUpsert(ctx, []model.AnswerJob{j}); err != nil {
			w.log.Error().Err(err).Str("attempt_id", j.AttemptID.String()).Msg("Upsert failed, requeueing")
			failed = append(failed, j)
		}
	}
	return failed
}

func (w *AutosaveWorker) deleteEach(ctx context.Context, jobs []model.AnswerJob) []model.AnswerJob {
	var failed []model.AnswerJob
	for _, j := range jobs {
		if _, err := w.pool.Exec(ctx,
			`DELETE FROM attempt_responses WHERE attempt_id = $1 AND question_id = $2`,
			j.AttemptID, j.QuestionID,
		); err != nil {
			w.log.Error().Err(err).Str("attempt_id", j.AttemptID.String()).Msg("Delete failed, requeueing")
			failed = append(failed, j)
		}
	}
	return failed
}
