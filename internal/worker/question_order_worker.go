package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// QuestionOrderWorker consumes persist_question_order_queue and registers
// attempts with the order their questions and options were served in.
// It never touches the status or score, so it is safe to land after scoring.
type QuestionOrderWorker struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	b    *batcher[model.QuestionOrderJob]
}

func NewQuestionOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *QuestionOrderWorker {
	w := &QuestionOrderWorker{
		pool: pool,
		log:  log.With().Str("component", "question_order_worker").Logger(),
	}
	w.b = &batcher[model.QuestionOrderJob]{
		queue:   config.WorkerKey.PersistQuestionOrderQueue,
		size:    BatchSize,
		timeout: BatchTimeout,
		rdb:     rdb,
		log:     w.log,
		flush:   w.flush,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *QuestionOrderWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}

func (w *QuestionOrderWorker) flush(ctx context.Context, batch []model.QuestionOrderJob) []model.QuestionOrderJob {
	// Rehydration re-sends the same order; keep one per attempt.
	seen := make(map[uuid.UUID]bool, len(batch))
	jobs := make([]model.QuestionOrderJob, 0, len(batch))
	for _, j := range batch {
		if !seen[j.AttemptID] {
			seen[j.AttemptID] = true
			jobs = append(jobs, j)
		}
	}

	if err := w.bulkUpsert(ctx, jobs); err != nil {
		w.log.Warn().Err(err).Msg("Bulk order upsert failed, using fallback")

		var failed []model.QuestionOrderJob
		for _, j := range jobs {
			if err := w.bulkUpsert(ctx, []model.QuestionOrderJob{j}); err != nil {
				w.log.Error().Err(err).Str("attempt_id", j.AttemptID.String()).Msg("Order upsert failed, requeueing")
				failed = append(failed, j)
			}
		}
		return failed
	}
	return nil
}

func (w *QuestionOrderWorker) bulkUpsert(ctx context.Context, jobs []model.QuestionOrderJob) error {
	if len(jobs) == 0 {
		return nil
	}

	n := len(jobs)
	ids := make([]uuid.UUID, n)
	users := make([]int, n)
	configs := make([]string, n)
	orders := make([]string, n)
	options := make([]string, n)
	startedAt := make([]time.Time, n)

	for i, j := range jobs {
		cfg, err := json.Marshal(j.Config)
		if err != nil {
			return err
		}
		order, err := json.Marshal(j.Order)
		if err != nil {
			return err
		}
		opts, err := json.Marshal(j.OptionOrder)
		if err != nil {
			return err
		}
		ids[i] = j.AttemptID
		users[i] = j.UserID
		configs[i] = string(cfg)
		orders[i] = string(order)
		options[i] = string(opts)
		startedAt[i] = j.StartedAt
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO attempts (id, user_id, config, question_order, option_order, started_at)
		SELECT u.id, u.user_id, u.config::jsonb, u.question_order::jsonb, u.option_order::jsonb, u.started_at
		FROM UNNEST(
			$1::uuid[], $2::int[], $3::text[], $4::text[], $5::text[], $6::timestamptz[]
		) AS u (id, user_id, config, question_order, option_order, started_at)
		ON CONFLICT (id) DO UPDATE
		SET question_order = EXCLUDED.question_order,
		    option_order = EXCLUDED.option_order`,
		ids, users, configs, orders, options, startedAt,
	)
	return err
}
