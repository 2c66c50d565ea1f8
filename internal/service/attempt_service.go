package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/grading"
	"github.com/stemsi/exstem-quiz/internal/metrics"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// QuizStore loads a quiz with its questions and answer key.
type QuizStore interface {
	FetchQuizBundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error)
}

// AttemptStore persists attempts. UpdateAttempt must only apply while the
// attempt is still in status from and return repository.ErrStatusConflict
// otherwise.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, quizID, studentID uuid.UUID, startedAt time.Time) (*model.Attempt, error)
	GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListAttempts(ctx context.Context, quizID, studentID uuid.UUID) ([]model.Attempt, error)
	UpdateAttempt(ctx context.Context, id uuid.UUID, from model.AttemptStatus, upd model.AttemptUpdate) error
	ListOverdue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]model.Attempt, error)
	ListUnscored(ctx context.Context, limit int) ([]model.Attempt, error)
}

// AnswerStore persists answers and their grades. UpsertAnswer returns
// repository.ErrStatusConflict when the attempt is no longer in_progress.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, payload json.RawMessage) error
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	SaveGrades(ctx context.Context, attemptID uuid.UUID, grades []model.AnswerGrade) error
}

// sweepBatch bounds how many attempts one expiry sweep touches.
const sweepBatch = 200

// AttemptService drives attempts through in_progress → submitted → graded.
type AttemptService struct {
	quizzes  QuizStore
	attempts AttemptStore
	answers  AnswerStore
	engine   *grading.Engine
	grace    time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// AttemptOption configures an AttemptService.
type AttemptOption func(*AttemptService)

// WithClock replaces time.Now as the service's source of time.
func WithClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) { s.now = now }
}

// NewAttemptService creates a new AttemptService. grace is added to every
// quiz time limit before answers are refused or the attempt is auto-submitted.
func NewAttemptService(
	quizzes QuizStore,
	attempts AttemptStore,
	answers AnswerStore,
	engine *grading.Engine,
	grace time.Duration,
	log zerolog.Logger,
	opts ...AttemptOption,
) *AttemptService {
	s := &AttemptService{
		quizzes:  quizzes,
		attempts: attempts,
		answers:  answers,
		engine:   engine,
		grace:    grace,
		now:      time.Now,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartOrResume returns the learner's open attempt, or opens a new one.
// resumed reports whether an existing attempt was returned.
func (s *AttemptService) StartOrResume(ctx context.Context, quizID, studentID uuid.UUID) (attempt *model.Attempt, resumed bool, err error) {
	b, err := s.bundle(ctx, quizID)
	if err != nil {
		return nil, false, err
	}
	if b.Quiz.Status != model.QuizStatusPublished {
		return nil, false, ErrQuizNotOpen
	}

	attempts, err := s.attempts.ListAttempts(ctx, quizID, studentID)
	if err != nil {
		return nil, false, fmt.Errorf("list attempts: %w", err)
	}

	now := s.now()
	used := 0
	for i := range attempts {
		a := &attempts[i]
		if a.Status != model.AttemptStatusInProgress {
			used++
			continue
		}
		if !s.overdue(a, &b.Quiz, now) {
			metrics.AttemptsStarted.WithLabelValues("resumed").Inc()
			return a, true, nil
		}
		// Time ran out while the learner was away.
		if err := s.submit(ctx, b, a, nil, model.SubmitTriggerExpiry); err != nil && !errors.Is(err, ErrInvalidState) {
			return nil, false, err
		}
		used++
	}

	if used >= b.Quiz.MaxAttempts() {
		return nil, false, ErrQuotaExceeded
	}
	if !b.Quiz.WindowContains(now) {
		return nil, false, ErrOutOfWindow
	}

	a, err := s.attempts.CreateAttempt(ctx, quizID, studentID, now)
	if errors.Is(err, repository.ErrAttemptInProgress) {
		// Concurrent start detected, return the attempt that won.
		s.log.Warn().
			Str("quiz_id", quizID.String()).
			Str("student_id", studentID.String()).
			Msg("Concurrent start detected, resuming existing attempt")
		return s.findOpen(ctx, quizID, studentID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create attempt: %w", err)
	}

	metrics.AttemptsStarted.WithLabelValues("new").Inc()
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("quiz_id", quizID.String()).
		Str("student_id", studentID.String()).
		Int("attempt_no", used+1).
		Msg("Attempt started")
	return a, false, nil
}

func (s *AttemptService) findOpen(ctx context.Context, quizID, studentID uuid.UUID) (*model.Attempt, bool, error) {
	attempts, err := s.attempts.ListAttempts(ctx, quizID, studentID)
	if err != nil {
		return nil, false, fmt.Errorf("list attempts: %w", err)
	}
	for i := range attempts {
		if attempts[i].Status == model.AttemptStatusInProgress {
			metrics.AttemptsStarted.WithLabelValues("resumed").Inc()
			return &attempts[i], true, nil
		}
	}
	return nil, false, ErrInvalidState
}

// RecordAnswer validates and stores one answer of an open attempt. The last
// write for a question wins. Nothing is graded here.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID, studentID, questionID uuid.UUID, payload json.RawMessage) error {
	return s.recordAnswer(ctx, attemptID, studentID, questionID, payload, s.now())
}

// RecordQueuedAnswer replays an autosave that could not be stored when it
// arrived. The deadline is checked against job.SavedAt.
func (s *AttemptService) RecordQueuedAnswer(ctx context.Context, job model.AutosaveJob) error {
	return s.recordAnswer(ctx, job.AttemptID, job.StudentID, job.QuestionID, job.Payload, job.SavedAt)
}

func (s *AttemptService) recordAnswer(ctx context.Context, attemptID, studentID, questionID uuid.UUID, payload json.RawMessage, at time.Time) error {
	a, b, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	if a.Status != model.AttemptStatusInProgress {
		return ErrInvalidState
	}
	if s.overdue(a, &b.Quiz, at) {
		return ErrTimeExpired
	}

	q, ok := b.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if err := checkPayload(q, payload); err != nil {
		return err
	}

	if err := s.answers.UpsertAnswer(ctx, attemptID, questionID, payload); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Submitted between the status check and the write.
			return ErrInvalidState
		}
		return fmt.Errorf("upsert answer: %w", err)
	}
	metrics.AnswersRecorded.Inc()
	return nil
}

// checkPayload rejects payloads that do not decode for the question type and
// choices that are not options of the question.
func checkPayload(q *model.Question, payload json.RawMessage) error {
	p, err := model.DecodeAnswerPayload(q.Type, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if c, ok := p.(model.ChoicePayload); ok {
		for _, id := range c.SelectedOptionIDs {
			if !q.HasOption(id) {
				return fmt.Errorf("%w: option %s is not part of the question", ErrInvalidPayload, id)
			}
		}
	}
	return nil
}

// Submit closes an open attempt and grades it. elapsedSeconds is the
// client-reported time on task and may be nil. A second submit of the same
// attempt returns ErrInvalidState.
func (s *AttemptService) Submit(ctx context.Context, attemptID, studentID uuid.UUID, elapsedSeconds *int, trigger model.SubmitTrigger) (*AttemptResult, error) {
	a, b, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusInProgress {
		return nil, ErrInvalidState
	}

	if err := s.submit(ctx, b, a, elapsedSeconds, trigger); err != nil {
		return nil, err
	}

	answers, err := s.answers.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return buildResult(b, a, answers, s.now())
}

// submit moves a to submitted and grades it in place. A grading failure is
// logged and left for the sweeper; the submission itself stands.
func (s *AttemptService) submit(ctx context.Context, b *model.QuizBundle, a *model.Attempt, elapsedSeconds *int, trigger model.SubmitTrigger) error {
	now := s.now()
	duration := submittedDuration(a, &b.Quiz, elapsedSeconds, now)
	status := model.AttemptStatusSubmitted

	err := s.attempts.UpdateAttempt(ctx, a.ID, model.AttemptStatusInProgress, model.AttemptUpdate{
		Status:          &status,
		SubmittedAt:     &now,
		DurationSeconds: &duration,
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}

	a.Status = status
	a.SubmittedAt = &now
	a.DurationSeconds = &duration
	metrics.AttemptsSubmitted.WithLabelValues(string(trigger)).Inc()

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("trigger", string(trigger)).
		Int("duration_seconds", duration).
		Msg("Attempt submitted")

	if _, err := s.grade(ctx, b, a); err != nil {
		s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Grading failed, sweeper will retry")
	}
	return nil
}

// submittedDuration prefers the client's elapsed time and falls back to the
// server's. The result is clamped to [0, min(server elapsed, time limit)].
func submittedDuration(a *model.Attempt, q *model.Quiz, elapsedSeconds *int, now time.Time) int {
	server := int(now.Sub(a.StartedAt) / time.Second)
	if server < 0 {
		server = 0
	}
	upper := server
	if limit := int(q.TimeLimit() / time.Second); limit > 0 && limit < upper {
		upper = limit
	}

	d := server
	if elapsedSeconds != nil {
		d = *elapsedSeconds
	}
	return min(max(d, 0), upper)
}

// grade runs the grading engine over the stored answers, saves the grades
// and finalizes the score.
func (s *AttemptService) grade(ctx context.Context, b *model.QuizBundle, a *model.Attempt) (*grading.Report, error) {
	start := time.Now()
	defer func() { metrics.GradingDuration.Observe(time.Since(start).Seconds()) }()

	answers, err := s.answers.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	rep := s.engine.GradeAttempt(b.Questions, answers)
	for _, f := range rep.Failures {
		qt := "unknown"
		if q, ok := b.Question(f.QuestionID); ok {
			qt = string(q.Type)
		}
		metrics.GradingFailures.WithLabelValues(qt).Inc()
		s.log.Warn().Err(f.Err).
			Str("attempt_id", a.ID.String()).
			Str("question_id", f.QuestionID.String()).
			Msg("Answer left ungraded")
	}

	if err := s.answers.SaveGrades(ctx, a.ID, rep.Grades); err != nil {
		return nil, fmt.Errorf("save grades: %w", err)
	}
	if err := s.finalize(ctx, b, a); err != nil {
		return nil, err
	}
	return &rep, nil
}

// FinalizeScore recomputes the attempt score from its stored answers. The
// attempt becomes graded unless the quiz has manually graded questions.
// Running it again yields the same result.
func (s *AttemptService) FinalizeScore(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	b, err := s.bundle(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, b, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AttemptService) finalize(ctx context.Context, b *model.QuizBundle, a *model.Attempt) error {
	if !a.Status.Terminal() {
		return ErrInvalidState
	}

	answers, err := s.answers.ListAnswers(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	score := grading.TotalPoints(answers)

	upd := model.AttemptUpdate{Score: &score}
	next := a.Status
	if !b.HasManualQuestions() {
		next = model.AttemptStatusGraded
		upd.Status = &next
	}

	err = s.attempts.UpdateAttempt(ctx, a.ID, a.Status, upd)
	if errors.Is(err, repository.ErrStatusConflict) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("finalize score: %w", err)
	}

	a.Score = &score
	a.Status = next
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Float64("score", score).
		Str("status", string(next)).
		Msg("Score finalized")
	return nil
}

// SweepReport summarizes one SubmitExpired run.
type SweepReport struct {
	Submitted int
	Rescored  int
	Failed    int
}

// SubmitExpired auto-submits every open attempt whose time limit plus grace
// has passed, then retries scoring for submitted attempts that never got a
// score.
func (s *AttemptService) SubmitExpired(ctx context.Context) (SweepReport, error) {
	var rep SweepReport

	overdue, err := s.attempts.ListOverdue(ctx, s.now(), s.grace, sweepBatch)
	if err != nil {
		return rep, fmt.Errorf("list overdue attempts: %w", err)
	}
	for i := range overdue {
		a := &overdue[i]
		b, err := s.bundle(ctx, a.QuizID)
		if err != nil {
			rep.Failed++
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Load quiz for expiry failed")
			continue
		}
		if err := s.submit(ctx, b, a, nil, model.SubmitTriggerExpiry); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue // learner submitted first
			}
			rep.Failed++
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Auto-submit failed")
			continue
		}
		rep.Submitted++
	}

	unscored, err := s.attempts.ListUnscored(ctx, sweepBatch)
	if err != nil {
		return rep, fmt.Errorf("list unscored attempts: %w", err)
	}
	for i := range unscored {
		a := &unscored[i]
		b, err := s.bundle(ctx, a.QuizID)
		if err == nil {
			_, err = s.grade(ctx, b, a)
		}
		if errors.Is(err, ErrInvalidState) {
			continue // graded concurrently
		}
		if err != nil {
			rep.Failed++
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Rescore failed")
			continue
		}
		rep.Rescored++
	}
	return rep, nil
}

// AttemptHistory lists a learner's attempts at a quiz.
type AttemptHistory struct {
	Attempts          []model.Attempt `json:"attempts"`
	AttemptsAllowed   int             `json:"attempts_allowed"`
	AttemptsRemaining int             `json:"attempts_remaining"`
}

// History returns the learner's attempts, most recent first, with the
// visibility policy applied to scores.
func (s *AttemptService) History(ctx context.Context, quizID, studentID uuid.UUID) (*AttemptHistory, error) {
	b, err := s.bundle(ctx, quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	visible := b.Quiz.ResultsVisible(s.now())
	used := 0
	for i := range attempts {
		if attempts[i].Status.Terminal() {
			used++
		}
		if !visible {
			attempts[i].Score = nil
		}
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return &AttemptHistory{
		Attempts:          attempts,
		AttemptsAllowed:   b.Quiz.MaxAttempts(),
		AttemptsRemaining: max(b.Quiz.MaxAttempts()-used, 0),
	}, nil
}

// Result returns the learner's view of one attempt. While in progress it
// carries the saved answers and the deadline; afterwards score and
// correctness appear only when the quiz policy allows it.
func (s *AttemptService) Result(ctx context.Context, attemptID, studentID uuid.UUID) (*AttemptResult, error) {
	a, b, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return buildResult(b, a, answers, s.now())
}

// Paper returns the student-safe questions of a published quiz.
func (s *AttemptService) Paper(ctx context.Context, quizID uuid.UUID) (*model.QuizPaper, error) {
	b, err := s.bundle(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if b.Quiz.Status != model.QuizStatusPublished {
		return nil, ErrQuizNotOpen
	}
	return buildPaper(b)
}

// Regrade re-runs grading and scoring of a closed attempt. Only the quiz
// author may do this.
func (s *AttemptService) Regrade(ctx context.Context, attemptID, authorID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	b, err := s.bundle(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	if b.Quiz.AuthorID != authorID {
		return nil, ErrNotQuizAuthor
	}
	if !a.Status.Terminal() {
		return nil, ErrInvalidState
	}

	rep, err := s.grade(ctx, b, a)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("graded", len(rep.Grades)).
		Int("failed", len(rep.Failures)).
		Float64("auto_points", rep.Points()).
		Msg("Attempt regraded")
	return a, nil
}

func (s *AttemptService) bundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error) {
	b, err := s.quizzes.FetchQuizBundle(ctx, quizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("fetch quiz: %w", err)
	}
	return b, nil
}

// ownedAttempt loads an attempt and its quiz. Attempts of other learners are
// reported as not found.
func (s *AttemptService) ownedAttempt(ctx context.Context, attemptID, studentID uuid.UUID) (*model.Attempt, *model.QuizBundle, error) {
	a, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.StudentID != studentID {
		return nil, nil, ErrAttemptNotFound
	}
	b, err := s.bundle(ctx, a.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (s *AttemptService) overdue(a *model.Attempt, q *model.Quiz, at time.Time) bool {
	deadline, ok := a.Deadline(q.TimeLimit(), s.grace)
	return ok && at.After(deadline)
}
