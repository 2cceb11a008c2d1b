package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// AttemptRepository reads persisted attempts. Writes go through the workers.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

var finishedStatuses = []string{
	string(model.AttemptStatusCompleted),
	string(model.AttemptStatusExpired),
	string(model.AttemptStatusAbandoned),
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// ListByUser returns a page of the user's finished attempts, newest first,
// and their total count.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id = $1 AND status = ANY($2)`, userID, finishedStatuses,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, status, score_percent, correct_count, total_count, per_category, started_at, completed_at
		 FROM attempts
		 WHERE user_id = $1 AND status = ANY($2)
		 ORDER BY started_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, finishedStatuses, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts := make([]model.AttemptSummary, 0)
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(&a.ID, &a.UserID, &a.Status, &a.ScorePercent, &a.CorrectCount, &a.TotalCount, &a.PerCategory, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}
