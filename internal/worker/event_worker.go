package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/model"
)

var eventColumns = []string{
	"attempt_id", "user_id", "event_type", "status", "current_idx", "remaining", "question_id", "occurred_at",
}

// EventWorker consumes persist_attempt_events_queue and appends the attempt
// audit trail with COPY.
type EventWorker struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	b    *batcher[model.AttemptEventJob]
}

func NewEventWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	w := &EventWorker{
		pool: pool,
		log:  log.With().Str("component", "event_worker").Logger(),
	}
	w.b = &batcher[model.AttemptEventJob]{
		queue:   config.WorkerKey.PersistEventsQueue,
		size:    BatchSize * 4,
		timeout: BatchTimeout,
		rdb:     rdb,
		log:     w.log,
		flush:   w.flush,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *EventWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}

func (w *EventWorker) flush(ctx context.Context, batch []model.AttemptEventJob) []model.AttemptEventJob {
	if _, err := w.pool.CopyFrom(ctx, pgx.Identifier{"attempt_events"}, eventColumns, pgx.CopyFromRows(eventRows(batch))); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		return w.fallback(ctx, batch)
	}
	return nil
}

func eventRows(batch []model.AttemptEventJob) [][]any {
	rows := make([][]any, len(batch))
	for i, e := range batch {
		rows[i] = []any{e.AttemptID, e.UserID, e.Type, e.Status, e.Index, e.Remaining, e.QuestionID, e.At}
	}
	return rows
}

func (w *EventWorker) fallback(ctx context.Context, batch []model.AttemptEventJob) []model.AttemptEventJob {
	var failed []model.AttemptEventJob
	for i, row := range eventRows(batch) {
		if _, err := w.pool.Exec(ctx,
			`INSERT INTO attempt_events (attempt_id, user_id, event_type, status, current_idx, remaining, question_id, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			row...,
		); err != nil {
			w.log.Error().Err(err).Str("attempt_id", batch[i].AttemptID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, batch[i])
		}
	}
	return failed
}
