package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// FetchQuestions draws up to filter.Count random questions matching the filter.
// Mixed difficulty and empty category/type sets match everything.
func (r *QuestionRepository) FetchQuestions(ctx context.Context, filter model.QuestionFilter) ([]model.Question, error) {
	difficulty := ""
	if filter.Difficulty != model.DifficultyMixed {
		difficulty = string(filter.Difficulty)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, correct_answer, image_ref, category, difficulty, question_type, points, explanation
		 FROM questions
		 WHERE ($1 = '' OR difficulty = $1)
		   AND (cardinality($2::text[]) = 0 OR category = ANY($2::text[]))
		   AND (cardinality($3::text[]) = 0 OR question_type = ANY($3::text[]))
		 ORDER BY random()
		 LIMIT $4`,
		difficulty, nonNil(filter.Categories), nonNil(filter.Types), filter.Count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectAnswer, &q.ImageRef, &q.Category, &q.Difficulty, &q.Type, &q.Points, &q.Explanation); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CategoryCounts returns the number of questions per category.
func (r *QuestionRepository) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT category, COUNT(*) FROM questions GROUP BY category`)
}

// TypeCounts returns the number of questions per question type.
func (r *QuestionRepository) TypeCounts(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT question_type, COUNT(*) FROM questions GROUP BY question_type`)
}

func (r *QuestionRepository) countBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// BulkCreate inserts questions with COPY and returns the number of rows written.
func (r *QuestionRepository) BulkCreate(ctx context.Context, questions []model.Question) (int64, error) {
	rows := make([][]interface{}, 0, len(questions))
	for _, q := range questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []interface{}{
			q.Text, opts, q.CorrectAnswer, q.ImageRef, q.Category, string(q.Difficulty), q.Type, q.Points, q.Explanation,
		})
	}

	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"question_text", "options", "correct_answer", "image_ref", "category", "difficulty", "question_type", "points", "explanation"},
		pgx.CopyFromRows(rows),
	)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
