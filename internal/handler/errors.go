package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// errorCode maps a service error to an HTTP status and response code.
// Anything unrecognized is an internal error.
func errorCode(err error) (int, response.ErrCode) {
	var qe *service.QuestionError
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusForbidden, response.ErrQuotaExceeded
	case errors.Is(err, service.ErrOutOfWindow), errors.Is(err, service.ErrQuizNotOpen):
		return http.StatusForbidden, response.ErrQuizNotAvailable
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, response.ErrInvalidAttemptState
	case errors.Is(err, service.ErrTimeExpired):
		return http.StatusConflict, response.ErrTimeExpired
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrQuizNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, service.ErrNotQuizAuthor):
		return http.StatusForbidden, response.ErrNotQuizAuthor
	case errors.Is(err, service.ErrQuizNotDraft):
		return http.StatusConflict, response.ErrQuizNotDraft
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.As(err, &qe):
		return http.StatusBadRequest, response.ErrInvalidQuestion
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFromError writes the error envelope for err. Internal errors are logged
// since the client only sees a generic message.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		response.Fail(c, status, code)
		return
	}

	var qe *service.QuestionError
	if errors.As(err, &qe) {
		response.FailWithFields(c, status, code, map[string]string{
			"questions": qe.Error(),
		})
		return
	}
	response.Fail(c, status, code)
}

// uuidParam parses a UUID path parameter, writing INVALID_ID on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
