package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// QuizAuthorStore is the system of record for quizzes being authored.
type QuizAuthorStore interface {
	FetchQuizBundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error)
	Create(ctx context.Context, q *model.Quiz) error
	ReplaceQuestions(ctx context.Context, quizID uuid.UUID, questions []model.Question) error
	Publish(ctx context.Context, quizID uuid.UUID) error
}

// AttemptLister pages through every attempt of a quiz.
type AttemptLister interface {
	ListByQuiz(ctx context.Context, quizID uuid.UUID, page, perPage int) ([]model.Attempt, int, error)
}

// BundleCache holds published bundles for the attempt path.
type BundleCache interface {
	Warm(ctx context.Context, b *model.QuizBundle) error
}

// QuizService handles quiz authoring for teachers.
type QuizService struct {
	quizzes  QuizAuthorStore
	attempts AttemptLister
	cache    BundleCache
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizzes QuizAuthorStore, attempts AttemptLister, cache BundleCache, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizzes:  quizzes,
		attempts: attempts,
		cache:    cache,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// CreateQuiz inserts a new draft quiz owned by authorID.
func (s *QuizService) CreateQuiz(ctx context.Context, authorID uuid.UUID, req *model.CreateQuizRequest) (*model.Quiz, error) {
	q := &model.Quiz{
		SubjectID:         req.SubjectID,
		AuthorID:          authorID,
		Title:             req.Title,
		TimeLimitMinutes:  req.TimeLimitMinutes,
		AttemptsAllowed:   req.AttemptsAllowed,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
		ShowResultsPolicy: req.ShowResultsPolicy,
		Status:            model.QuizStatusDraft,
	}
	if q.AttemptsAllowed < 1 {
		q.AttemptsAllowed = 1
	}
	if q.ShowResultsPolicy == "" {
		q.ShowResultsPolicy = model.ShowResultsImmediate
	}

	if err := s.quizzes.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	s.log.Info().Str("quiz_id", q.ID.String()).Str("author_id", authorID.String()).Msg("Quiz created")
	return q, nil
}

// GetQuiz returns the full bundle, answer key included, to its author.
func (s *QuizService) GetQuiz(ctx context.Context, quizID, authorID uuid.UUID) (*model.QuizBundle, error) {
	return s.authored(ctx, quizID, authorID)
}

// ReplaceQuestions swaps the whole question list of a draft quiz. Every
// question is validated before anything is written.
func (s *QuizService) ReplaceQuestions(ctx context.Context, quizID, authorID uuid.UUID, req *model.ReplaceQuestionsRequest) (*model.QuizBundle, error) {
	b, err := s.authored(ctx, quizID, authorID)
	if err != nil {
		return nil, err
	}
	if b.Quiz.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}

	questions := make([]model.Question, len(req.Questions))
	for i, in := range req.Questions {
		questions[i] = in.ToQuestion(quizID, i)
		if err := questions[i].Validate(); err != nil {
			return nil, &QuestionError{Index: i, Err: err}
		}
	}

	if err := s.quizzes.ReplaceQuestions(ctx, quizID, questions); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrQuizNotDraft
		}
		return nil, fmt.Errorf("replace questions: %w", err)
	}

	b.Questions = questions
	s.log.Info().Str("quiz_id", quizID.String()).Int("questions", len(questions)).Msg("Questions replaced")
	return b, nil
}

// Publish opens a draft quiz to learners and warms the bundle cache.
func (s *QuizService) Publish(ctx context.Context, quizID, authorID uuid.UUID) (*model.Quiz, error) {
	b, err := s.authored(ctx, quizID, authorID)
	if err != nil {
		return nil, err
	}
	if b.Quiz.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}
	if len(b.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	for i := range b.Questions {
		if err := b.Questions[i].Validate(); err != nil {
			return nil, &QuestionError{Index: i, Err: err}
		}
	}

	if err := s.quizzes.Publish(ctx, quizID); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrQuizNotDraft
		}
		return nil, fmt.Errorf("publish quiz: %w", err)
	}
	b.Quiz.Status = model.QuizStatusPublished

	// A cold cache only costs the first learner a database read.
	if err := s.cache.Warm(ctx, b); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Prewarm failed")
	}

	s.log.Info().Str("quiz_id", quizID.String()).Msg("Quiz published")
	return &b.Quiz, nil
}

// ListResults pages through all attempts of the author's quiz. Scores are
// always visible to the author.
func (s *QuizService) ListResults(ctx context.Context, quizID, authorID uuid.UUID, page, perPage int) ([]model.Attempt, *response.Pagination, error) {
	if _, err := s.authored(ctx, quizID, authorID); err != nil {
		return nil, nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	attempts, total, err := s.attempts.ListByQuiz(ctx, quizID, page, perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	return attempts, response.NewPagination(page, perPage, total), nil
}

func (s *QuizService) authored(ctx context.Context, quizID, authorID uuid.UUID) (*model.QuizBundle, error) {
	b, err := s.quizzes.FetchQuizBundle(ctx, quizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("fetch quiz: %w", err)
	}
	if b.Quiz.AuthorID != authorID {
		return nil, ErrNotQuizAuthor
	}
	return b, nil
}
