package websocket

import (
	"encoding/json"

	"github.com/stemsi/quizrun-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionGoTo     Action = "goto"
	ActionSubmit   Action = "submit"
	ActionState    Action = "state"
	ActionPing     Action = "ping"
)

// Request is any client message. Fields beyond Action are read per action.
type Request struct {
	Action  Action  `json:"action"`
	QID     string  `json:"q_id,omitempty"`
	Answer  string  `json:"ans,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`
	Index   *int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventState   Event = "state"
	EventResult  Event = "result"
	EventSession Event = "session"
	EventPong    Event = "pong"
)

// StateResponse carries the attempt after an action.
type StateResponse struct {
	Event   Event              `json:"event"`
	Attempt *model.AttemptView `json:"attempt"`
}

// ResultResponse is sent after a successful submit.
type ResultResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

// SessionEventResponse forwards an engine event from PubSub as-is.
type SessionEventResponse struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
