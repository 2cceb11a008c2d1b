package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/engine"
	"github.com/stemsi/quizrun-backend/internal/model"
)

const observerTimeout = 2 * time.Second

// attemptObserver mirrors session events into Redis: snapshots for
// rehydration, persistence jobs for the workers and PubSub for live clients.
type attemptObserver struct {
	svc     *QuizService
	session *engine.Session
}

func (o *attemptObserver) OnEvent(ev engine.Event) {
	// Events may arrive from the countdown goroutine after the request is gone.
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()

	log := o.svc.log.With().Str("attempt_id", ev.AttemptID.String()).Str("event", string(ev.Type)).Logger()

	if raw, err := json.Marshal(ev); err == nil {
		if err := o.svc.store.Publish(ctx, ev.AttemptID, raw); err != nil {
			log.Warn().Err(err).Msg("Publish failed")
		}
	}

	if ev.Type == engine.EventTick {
		return
	}

	a := o.session.Snapshot()
	if err := o.svc.store.Save(ctx, a); err != nil {
		log.Warn().Err(err).Msg("Snapshot save failed")
	}

	if a.Demo {
		return
	}

	var jobs []queued
	switch ev.Type {
	case engine.EventStarted:
		// Also fires on rehydration; the worker upserts.
		jobs = append(jobs, queued{config.WorkerKey.PersistQuestionOrderQueue, questionOrderJob(a)})
	case engine.EventAnswered, engine.EventCleared:
		if ev.QuestionID != nil {
			jobs = append(jobs, queued{config.WorkerKey.PersistAnswersQueue, answerJob(a, *ev.QuestionID)})
		}
	case engine.EventExpired:
		jobs = append(jobs, queued{config.WorkerKey.PersistScoresQueue, scoreJob(a, model.AttemptStatusExpired)})
	case engine.EventAbandoned:
		jobs = append(jobs, queued{config.WorkerKey.PersistScoresQueue, scoreJob(a, model.AttemptStatusAbandoned)})
	}
	jobs = append(jobs, queued{config.WorkerKey.PersistEventsQueue, eventJob(a.UserID, ev)})

	for _, j := range jobs {
		if err := o.svc.store.Enqueue(ctx, j.queue, j.payload); err != nil {
			log.Error().Err(err).Str("queue", j.queue).Msg("Enqueue failed")
		}
	}
}

type queued struct {
	queue   string
	payload any
}

// queueSink hands a submitted attempt to the scoring worker.
type queueSink struct {
	jobs JobQueue
}

func (q *queueSink) SubmitAttempt(ctx context.Context, a model.Attempt) error {
	if a.Demo {
		return nil
	}
	return q.jobs.Enqueue(ctx, config.WorkerKey.PersistScoresQueue, scoreJob(a, model.AttemptStatusCompleted))
}

func scoreJob(a model.Attempt, status model.AttemptStatus) model.ScoreJob {
	a.Status = status
	res, err := engine.Aggregate(a)
	if err != nil {
		// Abandoned attempts are not scored.
		res.TotalCount = len(a.Questions)
		res.PerCategory = map[string]model.CategoryScore{}
	}

	completed := time.Now()
	if a.CompletedAt != nil {
		completed = *a.CompletedAt
	}
	return model.ScoreJob{
		AttemptID:    a.ID,
		UserID:       a.UserID,
		Status:       status,
		Config:       a.Config,
		CorrectCount: res.CorrectCount,
		TotalCount:   res.TotalCount,
		ScorePercent: res.ScorePercent,
		PerCategory:  res.PerCategory,
		StartedAt:    a.StartedAt,
		CompletedAt:  completed,
	}
}

func questionOrderJob(a model.Attempt) model.QuestionOrderJob {
	order := make([]uuid.UUID, len(a.Questions))
	options := make(map[uuid.UUID][]string, len(a.Questions))
	for i, q := range a.Questions {
		order[i] = q.ID
		options[q.ID] = q.Options
	}
	return model.QuestionOrderJob{
		AttemptID:   a.ID,
		UserID:      a.UserID,
		Config:      a.Config,
		Order:       order,
		OptionOrder: options,
		StartedAt:   a.StartedAt,
	}
}

func answerJob(a model.Attempt, questionID uuid.UUID) model.AnswerJob {
	job := model.AnswerJob{AttemptID: a.ID, UserID: a.UserID, QuestionID: questionID}
	if r, ok := a.Responses[questionID]; ok {
		job.Answer = r.UserAnswer
		job.IsCorrect = r.IsCorrect
		job.TimeSpentSeconds = r.TimeSpentSeconds
		job.AnsweredAt = r.AnsweredAt
	}
	return job
}

func eventJob(userID int, ev engine.Event) model.AttemptEventJob {
	return model.AttemptEventJob{
		AttemptID:  ev.AttemptID,
		UserID:     userID,
		Type:       string(ev.Type),
		Status:     string(ev.Status),
		Index:      ev.CurrentIndex,
		Remaining:  ev.TimeRemainingSeconds,
		QuestionID: ev.QuestionID,
		At:         ev.At,
	}
}
