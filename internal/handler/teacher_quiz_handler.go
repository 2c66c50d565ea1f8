package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// QuizAuthoring is the teacher side of quiz management.
type QuizAuthoring interface {
	CreateQuiz(ctx context.Context, authorID uuid.UUID, req *model.CreateQuizRequest) (*model.Quiz, error)
	GetQuiz(ctx context.Context, quizID, authorID uuid.UUID) (*model.QuizBundle, error)
	ReplaceQuestions(ctx context.Context, quizID, authorID uuid.UUID, req *model.ReplaceQuestionsRequest) (*model.QuizBundle, error)
	Publish(ctx context.Context, quizID, authorID uuid.UUID) (*model.Quiz, error)
	ListResults(ctx context.Context, quizID, authorID uuid.UUID, page, perPage int) ([]model.Attempt, *response.Pagination, error)
}

// Regrader re-runs grading of a closed attempt.
type Regrader interface {
	Regrade(ctx context.Context, attemptID, authorID uuid.UUID) (*model.Attempt, error)
}

// TeacherQuizHandler handles quiz authoring and results for teachers.
type TeacherQuizHandler struct {
	quizzes  QuizAuthoring
	regrader Regrader
	log      zerolog.Logger
}

// NewTeacherQuizHandler creates a new TeacherQuizHandler.
func NewTeacherQuizHandler(quizzes QuizAuthoring, regrader Regrader, log zerolog.Logger) *TeacherQuizHandler {
	return &TeacherQuizHandler{
		quizzes:  quizzes,
		regrader: regrader,
		log:      log.With().Str("component", "teacher_quiz_handler").Logger(),
	}
}

// CreateQuiz godoc
// POST /api/v1/teacher/quizzes
func (h *TeacherQuizHandler) CreateQuiz(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, quiz)
}

// GetQuiz godoc
// GET /api/v1/teacher/quizzes/:id
// Returns the quiz with its answer key.
func (h *TeacherQuizHandler) GetQuiz(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	bundle, err := h.quizzes.GetQuiz(c.Request.Context(), quizID, middleware.GetUserID(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, bundle)
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/quizzes/:id/questions
func (h *TeacherQuizHandler) ReplaceQuestions(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	bundle, err := h.quizzes.ReplaceQuestions(c.Request.Context(), quizID, middleware.GetUserID(c), &req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, bundle)
}

// PublishQuiz godoc
// POST /api/v1/teacher/quizzes/:id/publish
func (h *TeacherQuizHandler) PublishQuiz(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizzes.Publish(c.Request.Context(), quizID, middleware.GetUserID(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, quiz)
}

// ListResults godoc
// GET /api/v1/teacher/quizzes/:id/attempts?page=1&per_page=20
func (h *TeacherQuizHandler) ListResults(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	attempts, pagination, err := h.quizzes.ListResults(c.Request.Context(), quizID, middleware.GetUserID(c), page, perPage)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, attempts, pagination)
}

// RegradeAttempt godoc
// POST /api/v1/teacher/attempts/:attempt_id/regrade
func (h *TeacherQuizHandler) RegradeAttempt(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.regrader.Regrade(c.Request.Context(), attemptID, middleware.GetUserID(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}
