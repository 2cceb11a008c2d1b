package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/engine"
	"github.com/stemsi/quizrun-backend/internal/middleware"
	"github.com/stemsi/quizrun-backend/internal/model"
	"github.com/stemsi/quizrun-backend/internal/response"
	"github.com/stemsi/quizrun-backend/internal/service"
	"github.com/stemsi/quizrun-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// fakeQuiz implements the calls a test sets; any other call panics on the
// nil embedded interface.
type fakeQuiz struct {
	QuizRunner

	answer  func(userID int, id uuid.UUID, req model.AnswerRequest) (*model.AttemptView, error)
	active  func(userID int) (*model.AttemptView, error)
	submit  func(userID int, id uuid.UUID) (*model.Result, error)
	review  func(id uuid.UUID, filter model.ReviewFilter) ([]model.ReviewItem, error)
	history func(page, perPage int) ([]model.AttemptSummary, int, error)
}

func (f *fakeQuiz) Answer(_ context.Context, userID int, id uuid.UUID, req model.AnswerRequest) (*model.AttemptView, error) {
	return f.answer(userID, id, req)
}

func (f *fakeQuiz) ActiveAttempt(_ context.Context, userID int) (*model.AttemptView, error) {
	return f.active(userID)
}

func (f *fakeQuiz) Submit(_ context.Context, userID int, id uuid.UUID) (*model.Result, error) {
	return f.submit(userID, id)
}

func (f *fakeQuiz) Review(_ context.Context, _ int, id uuid.UUID, filter model.ReviewFilter) ([]model.ReviewItem, error) {
	return f.review(id, filter)
}

func (f *fakeQuiz) History(_ context.Context, _ int, page, perPage int) ([]model.AttemptSummary, int, error) {
	return f.history(page, perPage)
}

func newTestRouter(quiz QuizRunner, userID int) *gin.Engine {
	h := NewQuizHandler(quiz, zerolog.Nop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: userID})
		}
		c.Next()
	})
	r.GET("/sessions/active", h.GetActiveSession)
	r.POST("/sessions/:id/answers", h.Answer)
	r.POST("/sessions/:id/submit", h.Submit)
	r.GET("/sessions/:id/review", h.GetReview)
	r.GET("/history", h.GetHistory)
	return r
}

type testEnvelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) (int, testEnvelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{&engine.ConfigError{Reason: "too few"}, http.StatusUnprocessableEntity, response.ErrConfigRejected},
		{fmt.Errorf("wrap: %w", engine.ErrGenerationFailed), http.StatusServiceUnavailable, response.ErrGenerationFailed},
		{engine.ErrSubmissionInFlight, http.StatusConflict, response.ErrSubmissionInFlight},
		{engine.ErrSubmissionFailed, http.StatusBadGateway, response.ErrSubmissionFailed},
		{engine.ErrInvalidTransition, http.StatusConflict, response.ErrInvalidTransition},
		{engine.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
		{engine.ErrUnknownQuestion, http.StatusBadRequest, response.ErrUnknownQuestion},
		{engine.ErrInvalidFilter, http.StatusBadRequest, response.ErrInvalidFilter},
		{engine.ErrSessionClosed, http.StatusGone, response.ErrSessionClosed},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}

func TestAnswerPassesRequestThrough(t *testing.T) {
	id := uuid.New()
	qid := uuid.New()
	var got model.AnswerRequest
	quiz := &fakeQuiz{answer: func(userID int, sid uuid.UUID, req model.AnswerRequest) (*model.AttemptView, error) {
		if userID != 7 || sid != id {
			t.Errorf("unexpected caller %d / %s", userID, sid)
		}
		got = req
		return &model.AttemptView{ID: id, Status: model.AttemptStatusInProgress, AnsweredCount: 1}, nil
	}}
	r := newTestRouter(quiz, 7)

	body := fmt.Sprintf(`{"question_id":%q,"answer":"B","elapsed_seconds":4.5}`, qid)
	status, env := serve(t, r, http.MethodPost, "/sessions/"+id.String()+"/answers", body)
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if got.QuestionID != qid.String() || got.Answer != "B" || got.ElapsedSeconds != 4.5 {
		t.Fatalf("request not passed through: %+v", got)
	}
}

func TestAnswerValidation(t *testing.T) {
	r := newTestRouter(&fakeQuiz{}, 7)
	id := uuid.New().String()

	status, env := serve(t, r, http.MethodPost, "/sessions/"+id+"/answers", `{"question_id":"nope","answer":""}`)
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != response.ErrValidation {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if _, ok := env.Error.Fields["question_id"]; !ok {
		t.Fatalf("expected a question_id field error, got %v", env.Error.Fields)
	}

	status, env = serve(t, r, http.MethodPost, "/sessions/not-a-uuid/answers",
		fmt.Sprintf(`{"question_id":%q,"answer":"A"}`, uuid.New()))
	if status != http.StatusBadRequest || env.Error.Code != response.ErrInvalidID {
		t.Fatalf("bad session id: status = %d, error = %+v", status, env.Error)
	}
}

func TestRequiresClaims(t *testing.T) {
	r := newTestRouter(&fakeQuiz{}, 0)
	status, env := serve(t, r, http.MethodPost, "/sessions/"+uuid.New().String()+"/submit", "")
	if status != http.StatusUnauthorized || env.Error.Code != response.ErrTokenRequired {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}

func TestSubmitMapsDomainErrors(t *testing.T) {
	quiz := &fakeQuiz{submit: func(int, uuid.UUID) (*model.Result, error) {
		return nil, fmt.Errorf("submit: %w", engine.ErrSubmissionInFlight)
	}}
	r := newTestRouter(quiz, 7)

	status, env := serve(t, r, http.MethodPost, "/sessions/"+uuid.New().String()+"/submit", "")
	if status != http.StatusConflict || env.Error.Code != response.ErrSubmissionInFlight {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}

func TestActiveSessionNotFoundIsNull(t *testing.T) {
	quiz := &fakeQuiz{active: func(int) (*model.AttemptView, error) {
		return nil, service.ErrSessionNotFound
	}}
	r := newTestRouter(quiz, 7)

	status, env := serve(t, r, http.MethodGet, "/sessions/active", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if string(env.Data) != `{"attempt":null}` {
		t.Fatalf("data = %s", env.Data)
	}
}

func TestReviewNormalizesFilter(t *testing.T) {
	var got []model.ReviewFilter
	quiz := &fakeQuiz{review: func(_ uuid.UUID, f model.ReviewFilter) ([]model.ReviewItem, error) {
		got = append(got, f)
		if f == "bogus" {
			return nil, engine.ErrInvalidFilter
		}
		return []model.ReviewItem{}, nil
	}}
	r := newTestRouter(quiz, 7)
	base := "/sessions/" + uuid.New().String() + "/review"

	status, env := serve(t, r, http.MethodGet, base, "")
	if status != http.StatusOK || !strings.Contains(string(env.Data), `"filter":"all"`) {
		t.Fatalf("default filter: %d %s", status, env.Data)
	}
	if status, _ := serve(t, r, http.MethodGet, base+"?filter=INCORRECT", ""); status != http.StatusOK {
		t.Fatalf("uppercase filter: %d", status)
	}
	status, env = serve(t, r, http.MethodGet, base+"?filter=bogus", "")
	if status != http.StatusBadRequest || env.Error.Code != response.ErrInvalidFilter {
		t.Fatalf("bogus filter: %d %+v", status, env.Error)
	}

	want := []model.ReviewFilter{"", model.ReviewIncorrect, "bogus"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filters = %v, want %v", got, want)
		}
	}
}

func TestHistoryPagination(t *testing.T) {
	quiz := &fakeQuiz{history: func(page, perPage int) ([]model.AttemptSummary, int, error) {
		if page != 2 || perPage != 20 {
			t.Errorf("page=%d perPage=%d", page, perPage)
		}
		return []model.AttemptSummary{}, 41, nil
	}}
	r := newTestRouter(quiz, 7)

	status, env := serve(t, r, http.MethodGet, "/history?page=2&per_page=500", "")
	if status != http.StatusOK || env.Pagination == nil {
		t.Fatalf("status = %d, pagination = %+v", status, env.Pagination)
	}
	if env.Pagination.TotalPages != 3 || env.Pagination.TotalItems != 41 {
		t.Fatalf("pagination = %+v", env.Pagination)
	}
}
