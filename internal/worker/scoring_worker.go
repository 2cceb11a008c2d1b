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

// ScoringWorker consumes persist_scores_queue and records finished attempts.
// The attempts row is created if the question order job has not landed yet.
type ScoringWorker struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
	b    *batcher[model.ScoreJob]
}

func NewScoringWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ScoringWorker {
	w := &ScoringWorker{
		pool: pool,
		log:  log.With().Str("component", "scoring_worker").Logger(),
	}
	w.b = &batcher[model.ScoreJob]{
		queue:   config.WorkerKey.PersistScoresQueue,
		size:    BatchSize,
		timeout: BatchTimeout,
		rdb:     rdb,
		log:     w.log,
		flush:   w.flush,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ScoringWorker) Start(ctx context.Context) {
	w.b.run(ctx)
}

func (w *ScoringWorker) flush(ctx context.Context, batch []model.ScoreJob) []model.ScoreJob {
	jobs := latestScores(batch)
	if err := w.bulkUpsert(ctx, jobs); err != nil {
		w.log.Warn().Err(err).Msg("Bulk score upsert failed, using fallback")

		var failed []model.ScoreJob
		for _, j := range jobs {
			if err := w.bulkUpsert(ctx, []model.ScoreJob{j}); err != nil {
				w.log.Error().Err(err).Str("attempt_id", j.AttemptID.String()).Msg("Score upsert failed, requeueing")
				failed = append(failed, j)
			}
		}
		return failed
	}
	return nil
}

// latestScores keeps one job per attempt, preferring the later completion.
func latestScores(batch []model.ScoreJob) []model.ScoreJob {
	pos := make(map[uuid.UUID]int, len(batch))
	out := make([]model.ScoreJob, 0, len(batch))
	for _, j := range batch {
		if i, ok := pos[j.AttemptID]; ok {
			if !j.CompletedAt.Before(out[i].CompletedAt) {
				out[i] = j
			}
			continue
		}
		pos[j.AttemptID] = len(out)
		out = append(out, j)
	}
	return out
}

// bulkUpsert writes scores with UNNEST. JSON columns travel as text and are
// cast per row.
func (w *ScoringWorker) bulkUpsert(ctx context.Context, jobs []model.ScoreJob) error {
	if len(jobs) == 0 {
		return nil
	}

	n := len(jobs)
	ids := make([]uuid.UUID, n)
	users := make([]int, n)
	statuses := make([]string, n)
	configs := make([]string, n)
	correct := make([]int, n)
	totals := make([]int, n)
	scores := make([]int, n)
	perCategory := make([]string, n)
	startedAt := make([]time.Time, n)
	completedAt := make([]time.Time, n)

	for i, j := range jobs {
		cfg, err := json.Marshal(j.Config)
		if err != nil {
			return err
		}
		cats, err := json.Marshal(j.PerCategory)
		if err != nil {
			return err
		}
		ids[i] = j.AttemptID
		users[i] = j.UserID
		statuses[i] = string(j.Status)
		configs[i] = string(cfg)
		correct[i] = j.CorrectCount
		totals[i] = j.TotalCount
		scores[i] = j.ScorePercent
		perCategory[i] = string(cats)
		startedAt[i] = j.StartedAt
		completedAt[i] = j.CompletedAt
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO attempts
			(id, user_id, status, config, correct_count, total_count, score_percent, per_category, started_at, completed_at)
		SELECT u.id, u.user_id, u.status, u.config::jsonb, u.correct, u.total, u.score,
		       u.per_category::jsonb, u.started_at, u.completed_at
		FROM UNNEST(
			$1::uuid[], $2::int[], $3::text[], $4::text[], $5::int[],
			$6::int[], $7::int[], $8::text[], $9::timestamptz[], $10::timestamptz[]
		) AS u (id, user_id, status, config, correct, total, score, per_category, started_at, completed_at)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    correct_count = EXCLUDED.correct_count,
		    total_count = EXCLUDED.total_count,
		    score_percent = EXCLUDED.score_percent,
		    per_category = EXCLUDED.per_category,
		    completed_at = EXCLUDED.completed_at`,
		ids, users, statuses, configs, correct, totals, scores, perCategory, startedAt, completedAt,
	)
	return err
}
