package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/engine"
	"github.com/stemsi/quizrun-backend/internal/response"
	"github.com/stemsi/quizrun-backend/internal/service"
)

// errorStatus maps a domain error to an HTTP status and API code.
// Unknown errors are internal.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, engine.ErrConfigRejected):
		return http.StatusUnprocessableEntity, response.ErrConfigRejected
	case errors.Is(err, engine.ErrGenerationFailed):
		return http.StatusServiceUnavailable, response.ErrGenerationFailed
	case errors.Is(err, engine.ErrSubmissionInFlight):
		return http.StatusConflict, response.ErrSubmissionInFlight
	case errors.Is(err, engine.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, engine.ErrInvalidAnswer):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, engine.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, engine.ErrInvalidFilter):
		return http.StatusBadRequest, response.ErrInvalidFilter
	case errors.Is(err, engine.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the envelope for err. Config rejections carry the reason and
// counts as fields.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError && code != response.ErrGenerationFailed {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", response.RequestID(c)).Msg("Request failed")
	}

	var cerr *engine.ConfigError
	if errors.As(err, &cerr) {
		response.FailWithFields(c, status, code, map[string]string{
			"reason":    cerr.Reason,
			"requested": strconv.Itoa(cerr.Requested),
			"available": strconv.Itoa(cerr.Available),
		})
		return
	}
	response.Fail(c, status, code)
}

// paramUUID parses a path parameter, writing INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
