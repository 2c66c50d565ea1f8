package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrAttemptInProgress is returned when the learner already has an open
	// attempt for the quiz (partial unique index uq_quiz_attempts_in_progress).
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrStatusConflict is returned by guarded updates when the row is no
	// longer in the expected status.
	ErrStatusConflict = errors.New("status changed concurrently")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
