package engine

import (
	"github.com/stemsi/quizrun-backend/internal/model"
)

// Aggregate derives the result of a scored attempt.
func Aggregate(a model.Attempt) (model.Result, error) {
	if !a.Status.Scored() {
		return model.Result{}, &TransitionError{Op: "aggregate", Status: a.Status}
	}

	res := model.Result{
		AttemptID:   a.ID,
		Status:      a.Status,
		TotalCount:  len(a.Questions),
		PerCategory: make(map[string]model.CategoryScore),
	}

	for _, q := range a.Questions {
		cs := res.PerCategory[q.Category]
		cs.Total++
		res.PointsPossible += q.Points

		r, answered := a.Responses[q.ID]
		if answered {
			res.AnsweredCount++
			res.TimeSpent += r.TimeSpentSeconds
		} else {
			res.SkippedCount++
		}
		if answered && r.IsCorrect {
			cs.Correct++
			res.CorrectCount++
			res.PointsEarned += q.Points
		}
		res.PerCategory[q.Category] = cs
	}

	for c, cs := range res.PerCategory {
		cs.Percent = ScorePercent(cs.Correct, cs.Total)
		res.PerCategory[c] = cs
	}
	res.ScorePercent = ScorePercent(res.CorrectCount, res.TotalCount)
	return res, nil
}

// Review lists the attempt's questions that match filter, with answer keys.
// An empty filter means all. Explanations are only included when the quiz
// was configured with them.
func Review(a model.Attempt, filter model.ReviewFilter) ([]model.ReviewItem, error) {
	if filter == "" {
		filter = model.ReviewAll
	}
	switch filter {
	case model.ReviewAll, model.ReviewCorrect, model.ReviewIncorrect, model.ReviewSkipped:
	default:
		return nil, ErrInvalidFilter
	}
	if !a.Status.Scored() {
		return nil, &TransitionError{Op: "review", Status: a.Status}
	}

	items := make([]model.ReviewItem, 0, len(a.Questions))
	for i, q := range a.Questions {
		item := model.ReviewItem{Index: i, Question: q, Outcome: model.OutcomeSkipped}
		if r, ok := a.Responses[q.ID]; ok {
			r := r
			item.Response = &r
			item.Outcome = model.OutcomeIncorrect
			if r.IsCorrect {
				item.Outcome = model.OutcomeCorrect
			}
		}
		if !a.Config.IncludeExplanations {
			item.Question.Explanation = ""
		}

		if filter == model.ReviewAll || string(filter) == string(item.Outcome) {
			items = append(items, item)
		}
	}
	return items, nil
}

// Result aggregates the session's attempt.
func (s *Session) Result() (model.Result, error) {
	return Aggregate(s.Snapshot())
}

// Review filters the session's attempt for review.
func (s *Session) Review(filter model.ReviewFilter) ([]model.ReviewItem, error) {
	return Review(s.Snapshot(), filter)
}
