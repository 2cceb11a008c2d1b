package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/middleware"
	"github.com/stemsi/quizrun-backend/internal/model"
	"github.com/stemsi/quizrun-backend/internal/response"
	ws "github.com/stemsi/quizrun-backend/internal/websocket"
)

// EventSubscriber streams the published events of one attempt.
type EventSubscriber interface {
	Subscribe(ctx context.Context, attemptID uuid.UUID) (<-chan []byte, func() error, error)
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session events and accepts quiz actions over WebSocket.
type WSHandler struct {
	quiz     QuizRunner
	events   EventSubscriber
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(quiz QuizRunner, events EventSubscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		quiz:     quiz,
		events:   events,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/v1/quiz/sessions/:id/stream
// Forwards every engine event of the session (ticks included) and applies
// client actions, replying with the updated attempt.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID := claims.UserID

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Ownership is checked before the upgrade so strangers get a plain 404.
	if err := h.quiz.Owns(ctx, userID, attemptID); err != nil {
		fail(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("attempt_id", attemptID.String()).
		Logger()

	events, unsubscribe, err := h.events.Subscribe(ctx, attemptID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		conn.WriteError(string(response.ErrInternal), response.GetMessage(response.ErrInternal))
		return
	}
	defer unsubscribe()

	wsLog.Info().Msg("Quiz stream connected")

	go func() {
		for payload := range events {
			if err := conn.WriteTyped(ws.SessionEventResponse{Event: ws.EventSession, Data: payload}); err != nil {
				cancel()
				return
			}
		}
	}()

	h.sendState(ctx, conn, userID, attemptID)

	for {
		var msg ws.Request
		if err := conn.ReadRequest(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.handleAction(ctx, conn, wsLog, userID, attemptID, &msg)
	}
}

func (h *WSHandler) handleAction(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, userID int, attemptID uuid.UUID, msg *ws.Request) {
	var (
		v   *model.AttemptView
		err error
	)

	switch msg.Action {
	case ws.ActionPing:
		conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return

	case ws.ActionState:
		h.sendState(ctx, conn, userID, attemptID)
		return

	case ws.ActionAnswer:
		if msg.QID == "" || msg.Answer == "" {
			conn.WriteError(string(response.ErrValidation), "q_id and ans are required")
			return
		}
		// Validate QID shape before it reaches the session.
		if _, perr := uuid.Parse(msg.QID); perr != nil {
			conn.WriteError(string(response.ErrInvalidID), "invalid q_id format")
			return
		}
		v, err = h.quiz.Answer(ctx, userID, attemptID, model.AnswerRequest{
			QuestionID:     msg.QID,
			Answer:         msg.Answer,
			ElapsedSeconds: msg.Elapsed,
		})

	case ws.ActionClear:
		qid, perr := uuid.Parse(msg.QID)
		if perr != nil {
			conn.WriteError(string(response.ErrInvalidID), "invalid q_id format")
			return
		}
		v, err = h.quiz.ClearAnswer(ctx, userID, attemptID, qid)

	case ws.ActionNext:
		v, err = h.quiz.Next(ctx, userID, attemptID)

	case ws.ActionPrevious:
		v, err = h.quiz.Previous(ctx, userID, attemptID)

	case ws.ActionGoTo:
		if msg.Index == nil || *msg.Index < 0 {
			conn.WriteError(string(response.ErrValidation), "index is required")
			return
		}
		v, err = h.quiz.GoTo(ctx, userID, attemptID, *msg.Index)

	case ws.ActionSubmit:
		res, serr := h.quiz.Submit(ctx, userID, attemptID)
		if serr != nil {
			h.writeError(conn, wsLog, serr)
			return
		}
		wsLog.Info().Int("score", res.ScorePercent).Msg("Submitted over WebSocket")
		conn.WriteTyped(ws.ResultResponse{Event: ws.EventResult, Result: res})
		return

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return
	}

	if err != nil {
		h.writeError(conn, wsLog, err)
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: v})
}

func (h *WSHandler) sendState(ctx context.Context, conn *ws.Conn, userID int, attemptID uuid.UUID) {
	v, err := h.quiz.Attempt(ctx, userID, attemptID)
	if err != nil {
		h.writeError(conn, h.log, err)
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: v})
}

func (h *WSHandler) writeError(conn *ws.Conn, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("WebSocket action failed")
	}
	conn.WriteError(string(code), response.GetMessage(code))
}
