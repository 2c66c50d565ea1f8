package service

import (
	"errors"
	"fmt"
)

// Attempt and authoring errors. Handlers map them to response codes.
var (
	ErrQuotaExceeded   = errors.New("attempts quota exhausted")
	ErrOutOfWindow     = errors.New("quiz is outside its availability window")
	ErrInvalidState    = errors.New("attempt is not in a state that allows this operation")
	ErrTimeExpired     = errors.New("attempt time limit has passed")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrQuizNotOpen     = errors.New("quiz is not published")
	ErrUnknownQuestion = errors.New("question does not belong to this quiz")
	ErrInvalidPayload  = errors.New("answer payload does not match question type")
	ErrNotQuizAuthor   = errors.New("not the author of this quiz")
	ErrQuizNotDraft    = errors.New("quiz status is not draft")
	ErrNoQuestions     = errors.New("quiz has no questions")
)

// QuestionError reports which authored question failed validation.
type QuestionError struct {
	Index int
	Err   error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %v", e.Index, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

// IsRejection reports whether err is a business rule refusal rather than an
// infrastructure failure. Rejections must not be retried.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrQuotaExceeded, ErrOutOfWindow, ErrInvalidState, ErrTimeExpired,
		ErrAttemptNotFound, ErrQuizNotFound, ErrQuizNotOpen, ErrUnknownQuestion,
		ErrInvalidPayload, ErrNotQuizAuthor, ErrQuizNotDraft, ErrNoQuestions,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var qe *QuestionError
	return errors.As(err, &qe)
}
