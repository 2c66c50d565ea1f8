package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AnswerRepository handles attempt answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertAnswer stores the latest payload for (attempt, question). A newer
// payload replaces the old one and clears any grading left on the row. The
// write only lands while the attempt is in_progress; otherwise nothing is
// written and ErrStatusConflict is returned. The attempt row is share-locked
// so a concurrent status change waits for the write to commit.
func (r *AnswerRepository) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, payload json.RawMessage) error {
	tag, err := r.pool.Exec(ctx,
		`WITH open_attempt AS (
			SELECT id FROM quiz_attempts
			WHERE id = $1 AND status = $4
			FOR SHARE
		 )
		 INSERT INTO attempt_answers (attempt_id, question_id, answer_payload)
		 SELECT id, $2, $3 FROM open_attempt
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer_payload = EXCLUDED.answer_payload,
		     is_correct     = NULL,
		     points_awarded = NULL,
		     updated_at     = NOW()`,
		attemptID, questionID, []byte(payload), model.AttemptStatusInProgress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListAnswers returns every stored answer of an attempt.
func (r *AnswerRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, answer_payload, is_correct, points_awarded, updated_at
		 FROM attempt_answers
		 WHERE attempt_id = $1
		 ORDER BY updated_at`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		var payload []byte
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &payload, &a.IsCorrect, &a.PointsAwarded, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Payload = payload
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SaveGrades writes the grading outcome of a whole attempt in one statement.
// Answers missing from grades are reset to ungraded.
func (r *AnswerRepository) SaveGrades(ctx context.Context, attemptID uuid.UUID, grades []model.AnswerGrade) error {
	n := len(grades)
	questionIDs := make([]uuid.UUID, n)
	correct := make([]bool, n)
	points := make([]float64, n)
	for i, g := range grades {
		questionIDs[i] = g.QuestionID
		correct[i] = g.IsCorrect
		points[i] = g.PointsAwarded
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE attempt_answers AS a
		SET is_correct     = t.is_correct,
		    points_awarded = t.points_awarded
		FROM attempt_answers AS cur
		LEFT JOIN UNNEST(
			$2::uuid[],
			$3::bool[],
			$4::float8[]
		) AS t (question_id, is_correct, points_awarded)
		  ON t.question_id = cur.question_id
		WHERE a.id = cur.id
		  AND cur.attempt_id = $1
	`, attemptID, questionIDs, correct, points)
	return err
}
