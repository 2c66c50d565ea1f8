package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// AttemptFlow is the learner side of the attempt lifecycle.
type AttemptFlow interface {
	StartOrResume(ctx context.Context, quizID, studentID uuid.UUID) (*model.Attempt, bool, error)
	History(ctx context.Context, quizID, studentID uuid.UUID) (*service.AttemptHistory, error)
	Paper(ctx context.Context, quizID uuid.UUID) (*model.QuizPaper, error)
	RecordAnswer(ctx context.Context, attemptID, studentID, questionID uuid.UUID, payload json.RawMessage) error
	Submit(ctx context.Context, attemptID, studentID uuid.UUID, elapsedSeconds *int, trigger model.SubmitTrigger) (*service.AttemptResult, error)
	Result(ctx context.Context, attemptID, studentID uuid.UUID) (*service.AttemptResult, error)
}

// AnswerQueue takes autosaves that could not be stored right away.
type AnswerQueue interface {
	Enqueue(ctx context.Context, job model.AutosaveJob) error
}

// StudentQuizHandler handles student-facing endpoints (taking quizzes).
type StudentQuizHandler struct {
	attempts AttemptFlow
	queue    AnswerQueue
	log      zerolog.Logger
}

// NewStudentQuizHandler creates a new StudentQuizHandler.
func NewStudentQuizHandler(attempts AttemptFlow, queue AnswerQueue, log zerolog.Logger) *StudentQuizHandler {
	return &StudentQuizHandler{
		attempts: attempts,
		queue:    queue,
		log:      log.With().Str("component", "student_quiz_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/student/quizzes/:quiz_id/attempts
// Opens a new attempt (201) or resumes the open one (200) with its saved
// answers and deadline.
func (h *StudentQuizHandler) StartAttempt(c *gin.Context) {
	quizID, ok := uuidParam(c, "quiz_id")
	if !ok {
		return
	}
	studentID := middleware.GetUserID(c)

	attempt, resumed, err := h.attempts.StartOrResume(c.Request.Context(), quizID, studentID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	result, err := h.attempts.Result(c.Request.Context(), attempt.ID, studentID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"resumed": resumed, "attempt": result})
}

// ListAttempts godoc
// GET /api/v1/student/quizzes/:quiz_id/attempts
func (h *StudentQuizHandler) ListAttempts(c *gin.Context) {
	quizID, ok := uuidParam(c, "quiz_id")
	if !ok {
		return
	}

	history, err := h.attempts.History(c.Request.Context(), quizID, middleware.GetUserID(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// GetPaper godoc
// GET /api/v1/student/quizzes/:quiz_id/paper
// Returns the questions without correctness flags.
func (h *StudentQuizHandler) GetPaper(c *gin.Context) {
	quizID, ok := uuidParam(c, "quiz_id")
	if !ok {
		return
	}

	paper, err := h.attempts.Paper(c.Request.Context(), quizID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// SaveAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answers/:question_id
// Stores the answer synchronously. When the database is unavailable the
// answer is queued and 202 is returned.
func (h *StudentQuizHandler) SaveAnswer(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	studentID := middleware.GetUserID(c)
	status, err := saveAnswer(c.Request.Context(), h.attempts, h.queue, h.log, model.AutosaveJob{
		AttemptID:  attemptID,
		StudentID:  studentID,
		QuestionID: questionID,
		Payload:    req.Payload,
		SavedAt:    time.Now(),
	})
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	code := http.StatusOK
	if status == saveQueued {
		code = http.StatusAccepted
	}
	response.Success(c, code, gin.H{"status": status})
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/submit
func (h *StudentQuizHandler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	// The body is optional.
	var req model.SubmitAttemptRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.attempts.Submit(c.Request.Context(), attemptID, middleware.GetUserID(c), req.ElapsedSeconds, model.SubmitTriggerLearner)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *StudentQuizHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	result, err := h.attempts.Result(c.Request.Context(), attemptID, middleware.GetUserID(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

const (
	saveStored = "saved"
	saveQueued = "queued"
)

// saveAnswer records job through the service and falls back to the retry
// queue on infrastructure failures. Business rule errors are returned as is.
func saveAnswer(ctx context.Context, attempts AttemptFlow, queue AnswerQueue, log zerolog.Logger, job model.AutosaveJob) (string, error) {
	err := attempts.RecordAnswer(ctx, job.AttemptID, job.StudentID, job.QuestionID, job.Payload)
	if err == nil {
		return saveStored, nil
	}
	if service.IsRejection(err) {
		return "", err
	}

	if qerr := queue.Enqueue(ctx, job); qerr != nil {
		log.Error().Err(qerr).Str("attempt_id", job.AttemptID.String()).Msg("Autosave enqueue failed")
		return "", err
	}
	log.Warn().Err(err).Str("attempt_id", job.AttemptID.String()).Msg("Autosave queued for retry")
	return saveQueued, nil
}
