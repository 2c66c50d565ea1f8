package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuizRepository handles quiz, question and option data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizColumns = `id, subject_id, author_id, title, time_limit_minutes, attempts_allowed,
		start_at, end_at, show_results_policy, status, created_at, updated_at`

func scanQuiz(row pgx.Row, q *model.Quiz) error {
	return row.Scan(&q.ID, &q.SubjectID, &q.AuthorID, &q.Title, &q.TimeLimitMinutes, &q.AttemptsAllowed,
		&q.StartAt, &q.EndAt, &q.ShowResultsPolicy, &q.Status, &q.CreatedAt, &q.UpdatedAt)
}

// ListPublishedIDs returns the IDs of every published quiz still open or
// without an end date.
func (r *QuizRepository) ListPublishedIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM quizzes
		 WHERE status = $1 AND (end_at IS NULL OR end_at > $2)
		 ORDER BY created_at`, model.QuizStatusPublished, now)
	if err != nil {
		return nil, fmt.Errorf("query published quizzes: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan published quizzes: %w", err)
	}
	return ids, nil
}

// FetchQuizBundle loads a quiz with its questions and options in one round
// trip. Questions and options are ordered by position.
func (r *QuizRepository) FetchQuizBundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, quizID)
	batch.Queue(
		`SELECT id, quiz_id, type, text, points, media_url, tolerance, position
		 FROM quiz_questions WHERE quiz_id = $1
		 ORDER BY position`, quizID)
	batch.Queue(
		`SELECT o.id, o.question_id, o.text, o.is_correct, o.position
		 FROM question_options o
		 JOIN quiz_questions q ON q.id = o.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY q.position, o.position`, quizID)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	b := &model.QuizBundle{}
	if err := scanQuiz(br.QueryRow(), &b.Quiz); err != nil {
		return nil, notFound(err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Text, &q.Points, &q.MediaURL, &q.Tolerance, &q.Position); err != nil {
			rows.Close()
			return nil, err
		}
		index[q.ID] = len(b.Questions)
		b.Questions = append(b.Questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = br.Query()
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Position); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			b.Questions[i].Options = append(b.Questions[i].Options, o)
		}
	}
	return b, rows.Err()
}

// Create inserts a new quiz in draft status.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (subject_id, author_id, title, time_limit_minutes, attempts_allowed,
		                      start_at, end_at, show_results_policy, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		q.SubjectID, q.AuthorID, q.Title, q.TimeLimitMinutes, q.AttemptsAllowed,
		q.StartAt, q.EndAt, q.ShowResultsPolicy, model.QuizStatusDraft,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// ReplaceQuestions deletes every question of a draft quiz and inserts the
// given ones in a single transaction. Generated ids are written back into
// questions.
func (r *QuizRepository) ReplaceQuestions(ctx context.Context, quizID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.QuizStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM quizzes WHERE id = $1 FOR UPDATE`, quizID).Scan(&status); err != nil {
		return notFound(err)
	}
	if status != model.QuizStatusDraft {
		return ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, quizID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	var optionRows [][]any
	for i := range questions {
		q := &questions[i]
		q.QuizID = quizID
		err := tx.QueryRow(ctx,
			`INSERT INTO quiz_questions (quiz_id, type, text, points, media_url, tolerance, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			quizID, q.Type, q.Text, q.Points, q.MediaURL, q.Tolerance, q.Position,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.Position, err)
		}
		for j := range q.Options {
			o := &q.Options[j]
			o.ID = uuid.New()
			o.QuestionID = q.ID
			optionRows = append(optionRows, []any{o.ID, o.QuestionID, o.Text, o.IsCorrect, o.Position})
		}
	}

	if len(optionRows) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"question_options"},
			[]string{"id", "question_id", "text", "is_correct", "position"},
			pgx.CopyFromRows(optionRows),
		)
		if err != nil {
			return fmt.Errorf("copy options: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE quizzes SET updated_at = NOW() WHERE id = $1`, quizID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Publish moves a draft quiz to published.
func (r *QuizRepository) Publish(ctx context.Context, quizID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.QuizStatusPublished, quizID, model.QuizStatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
