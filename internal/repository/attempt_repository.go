package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, quiz_id, student_id, status, started_at, submitted_at, duration_seconds, score`

func scanAttempts(rows pgx.Rows) ([]model.Attempt, error) {
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt,
			&a.SubmittedAt, &a.DurationSeconds, &a.Score); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CreateAttempt opens a new in_progress attempt. It returns
// ErrAttemptInProgress when the learner already has one open for the quiz.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, quizID, studentID uuid.UUID, startedAt time.Time) (*model.Attempt, error) {
	a := &model.Attempt{
		QuizID:    quizID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: startedAt,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts (quiz_id, student_id, status, started_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		quizID, studentID, model.AttemptStatusInProgress, startedAt,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAttemptInProgress
		}
		return nil, err
	}
	return a, nil
}

// GetAttempt retrieves an attempt by id.
func (r *AttemptRepository) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.DurationSeconds, &a.Score)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListAttempts returns a learner's attempts at a quiz, most recent first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, quizID, studentID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE quiz_id = $1 AND student_id = $2
		 ORDER BY started_at DESC, id DESC`, quizID, studentID)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

// UpdateAttempt applies upd to the attempt only while it is still in status
// from. Nil fields keep their stored value. ErrStatusConflict means another
// writer moved the attempt first.
func (r *AttemptRepository) UpdateAttempt(ctx context.Context, id uuid.UUID, from model.AttemptStatus, upd model.AttemptUpdate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status           = COALESCE($3, status),
		     submitted_at     = COALESCE($4, submitted_at),
		     duration_seconds = COALESCE($5, duration_seconds),
		     score            = COALESCE($6, score)
		 WHERE id = $1 AND status = $2`,
		id, from, upd.Status, upd.SubmittedAt, upd.DurationSeconds, upd.Score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListOverdue returns in_progress attempts of timed quizzes whose time limit
// plus grace ended before now, oldest first.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.quiz_id, a.student_id, a.status, a.started_at, a.submitted_at, a.duration_seconds, a.score
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.status = $1
		   AND q.time_limit_minutes IS NOT NULL
		   AND a.started_at + make_interval(mins => q.time_limit_minutes, secs => $2) < $3
		 ORDER BY a.started_at
		 LIMIT $4`,
		model.AttemptStatusInProgress, grace.Seconds(), now, limit)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

// ListUnscored returns submitted attempts that never received a score,
// typically because grading failed to persist.
func (r *AttemptRepository) ListUnscored(ctx context.Context, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE status = $1 AND score IS NULL
		 ORDER BY submitted_at NULLS FIRST
		 LIMIT $2`,
		model.AttemptStatusSubmitted, limit)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

// ListByQuiz returns every attempt of a quiz with pagination, most recent first.
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, page, perPage int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1`, quizID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE quiz_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		quizID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	attempts, err := scanAttempts(rows)
	return attempts, total, err
}
