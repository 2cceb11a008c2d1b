package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/middleware"
	"github.com/stemsi/quizrun-backend/internal/model"
	"github.com/stemsi/quizrun-backend/internal/response"
	"github.com/stemsi/quizrun-backend/internal/service"
	"github.com/stemsi/quizrun-backend/internal/validator"
)

// QuizRunner is the quiz service as seen by the HTTP and WebSocket layers.
type QuizRunner interface {
	Inventory(ctx context.Context) (model.Inventory, error)
	ValidateConfig(ctx context.Context, sel model.QuizSelection) (*model.ConfigValidation, error)
	StartSession(ctx context.Context, userID int, sel model.QuizSelection) (*model.AttemptView, error)
	StartDemo(ctx context.Context, userID int) (*model.AttemptView, error)
	Attempt(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error)
	ActiveAttempt(ctx context.Context, userID int) (*model.AttemptView, error)
	Answer(ctx context.Context, userID int, id uuid.UUID, req model.AnswerRequest) (*model.AttemptView, error)
	ClearAnswer(ctx context.Context, userID int, id, questionID uuid.UUID) (*model.AttemptView, error)
	Next(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error)
	Previous(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error)
	GoTo(ctx context.Context, userID int, id uuid.UUID, index int) (*model.AttemptView, error)
	Submit(ctx context.Context, userID int, id uuid.UUID) (*model.Result, error)
	Abandon(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error)
	Results(ctx context.Context, userID int, id uuid.UUID) (*model.Result, error)
	Review(ctx context.Context, userID int, id uuid.UUID, filter model.ReviewFilter) ([]model.ReviewItem, error)
	History(ctx context.Context, userID, page, perPage int) ([]model.AttemptSummary, int, error)
	Owns(ctx context.Context, userID int, id uuid.UUID) error
}

// QuizHandler serves the quiz session endpoints.
type QuizHandler struct {
	quiz QuizRunner
	log  zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quiz QuizRunner, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quiz: quiz,
		log:  log.With().Str("component", "quiz_handler").Logger(),
	}
}

// GetInventory godoc
// GET /api/v1/quiz/inventory
// Returns how many questions exist per category and type.
func (h *QuizHandler) GetInventory(c *gin.Context) {
	inv, err := h.quiz.Inventory(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"inventory": inv, "question_counts": model.AllowedQuestionCounts})
}

// ValidateConfig godoc
// POST /api/v1/quiz/config/validate
// Dry-runs a selection against the inventory without starting anything.
func (h *QuizHandler) ValidateConfig(c *gin.Context) {
	var sel model.QuizSelection
	if fields := validator.Bind(c, &sel); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.quiz.ValidateConfig(c.Request.Context(), sel)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// StartSession godoc
// POST /api/v1/quiz/sessions
// Resolves the selection, generates the questions and starts the countdown.
func (h *QuizHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var sel model.QuizSelection
	if fields := validator.Bind(c, &sel); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.quiz.StartSession(c.Request.Context(), claims.UserID, sel)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": v})
}

// StartDemo godoc
// POST /api/v1/quiz/demo
// Starts a session over the fixed demo set. Demo attempts are never persisted.
func (h *QuizHandler) StartDemo(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	v, err := h.quiz.StartDemo(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": v})
}

// GetActiveSession godoc
// GET /api/v1/quiz/sessions/active
// Returns the caller's in-progress attempt, or null.
func (h *QuizHandler) GetActiveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	v, err := h.quiz.ActiveAttempt(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Success(c, http.StatusOK, gin.H{"attempt": nil})
			return
		}
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": v})
}

// GetSession godoc
// GET /api/v1/quiz/sessions/:id
func (h *QuizHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.Attempt(ctx, userID, id)
	})
}

// Answer godoc
// POST /api/v1/quiz/sessions/:id/answers
// Records an answer. Answering the current question schedules the auto-advance.
func (h *QuizHandler) Answer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.Answer(ctx, userID, id, req)
	})
}

// ClearAnswer godoc
// DELETE /api/v1/quiz/sessions/:id/answers/:question_id
func (h *QuizHandler) ClearAnswer(c *gin.Context) {
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.ClearAnswer(ctx, userID, id, questionID)
	})
}

// Next godoc
// POST /api/v1/quiz/sessions/:id/next
func (h *QuizHandler) Next(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.Next(ctx, userID, id)
	})
}

// Previous godoc
// POST /api/v1/quiz/sessions/:id/previous
func (h *QuizHandler) Previous(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.Previous(ctx, userID, id)
	})
}

// GoTo godoc
// POST /api/v1/quiz/sessions/:id/goto
// Out-of-range indexes are clamped.
func (h *QuizHandler) GoTo(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.GoTo(ctx, userID, id, *req.Index)
	})
}

// Abandon godoc
// POST /api/v1/quiz/sessions/:id/abandon
func (h *QuizHandler) Abandon(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error) {
		return h.quiz.Abandon(ctx, userID, id)
	})
}

// Submit godoc
// POST /api/v1/quiz/sessions/:id/submit
// Scores the attempt and hands it to persistence. A failed hand-off leaves
// the attempt SUBMITTING; the client may retry.
func (h *QuizHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	res, err := h.quiz.Submit(c.Request.Context(), claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// GetResults godoc
// GET /api/v1/quiz/sessions/:id/results
func (h *QuizHandler) GetResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	res, err := h.quiz.Results(c.Request.Context(), claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// GetReview godoc
// GET /api/v1/quiz/sessions/:id/review?filter=all|correct|incorrect|skipped
func (h *QuizHandler) GetReview(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	filter := model.ReviewFilter(strings.ToLower(strings.TrimSpace(c.Query("filter"))))
	items, err := h.quiz.Review(c.Request.Context(), claims.UserID, id, filter)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if filter == "" {
		filter = model.ReviewAll
	}
	response.Success(c, http.StatusOK, gin.H{"filter": filter, "items": items})
}

// GetHistory godoc
// GET /api/v1/quiz/history?page=1&per_page=20
// Lists the caller's persisted attempts, newest first.
func (h *QuizHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	attempts, total, err := h.quiz.History(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// withSession resolves the caller and session id, runs op and writes the view.
func (h *QuizHandler) withSession(c *gin.Context, op func(ctx context.Context, userID int, id uuid.UUID) (*model.AttemptView, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	v, err := op(c.Request.Context(), claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": v})
}
