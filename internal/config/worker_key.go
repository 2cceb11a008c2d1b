package config

const workerKeyPrefix = "quizrun:"

// WorkerKeyStruct names the Redis lists the persistence workers drain.
type WorkerKeyStruct struct {
	PersistEventsQueue        string
	PersistAnswersQueue       string
	PersistScoresQueue        string
	PersistQuestionOrderQueue string
}

// All lists every queue, in the order the workers are started.
func (w *WorkerKeyStruct) All() []string {
	return []string{
		w.PersistAnswersQueue,
		w.PersistScoresQueue,
		w.PersistQuestionOrderQueue,
		w.PersistEventsQueue,
	}
}

var WorkerKey = &WorkerKeyStruct{
	PersistEventsQueue:        workerKeyPrefix + "persist_attempt_events_queue",
	PersistAnswersQueue:       workerKeyPrefix + "persist_answers_queue",
	PersistScoresQueue:        workerKeyPrefix + "persist_scores_queue",
	PersistQuestionOrderQueue: workerKeyPrefix + "persist_question_order_queue",
}
