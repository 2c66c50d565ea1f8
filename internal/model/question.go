package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQSingle QuestionType = "mcq_single"
	QuestionTypeMCQMulti  QuestionType = "mcq_multi"
	QuestionTypeTrueFalse QuestionType = "true_false"
	QuestionTypeNumeric   QuestionType = "numeric"
	QuestionTypeShortText QuestionType = "short_text"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMCQSingle, QuestionTypeMCQMulti, QuestionTypeTrueFalse,
		QuestionTypeNumeric, QuestionTypeShortText:
		return true
	}
	return false
}

// AutoGradable reports whether answers of this type are scored by fixed rules.
func (t QuestionType) AutoGradable() bool {
	return t.Valid() && t != QuestionTypeShortText
}

// Question is a single quiz question. Options are ordered by Position.
type Question struct {
	ID        uuid.UUID    `json:"id"`
	QuizID    uuid.UUID    `json:"quiz_id"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Points    float64      `json:"points"`
	MediaURL  *string      `json:"media_url,omitempty"`
	Tolerance *float64     `json:"tolerance,omitempty"`
	Position  int          `json:"position"`
	Options   []Option     `json:"options"`
}

// Option is a candidate answer of a question.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
	Position   int       `json:"position"`
}

// CorrectOptions returns the options flagged correct, in order.
func (q *Question) CorrectOptions() []Option {
	var out []Option
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o)
		}
	}
	return out
}

// HasOption reports whether id belongs to one of the question's options.
func (q *Question) HasOption(id uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Authoring errors returned by Question.Validate.
var (
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrTooFewOptions       = errors.New("question needs more options")
	ErrCorrectOptionCount  = errors.New("wrong number of correct options")
	ErrNumericAnswer       = errors.New("numeric answer is not a number")
	ErrNegativeTolerance   = errors.New("tolerance must not be negative")
	ErrNegativePoints      = errors.New("points must not be negative")
)

// Validate checks the authoring invariants for the question's type.
func (q *Question) Validate() error {
	if !q.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownQuestionType, q.Type)
	}
	if q.Points < 0 {
		return ErrNegativePoints
	}
	correct := len(q.CorrectOptions())

	switch q.Type {
	case QuestionTypeMCQSingle:
		if len(q.Options) < 2 {
			return ErrTooFewOptions
		}
		if correct != 1 {
			return ErrCorrectOptionCount
		}
	case QuestionTypeMCQMulti:
		if len(q.Options) < 2 {
			return ErrTooFewOptions
		}
		if correct < 1 {
			return ErrCorrectOptionCount
		}
	case QuestionTypeTrueFalse:
		if len(q.Options) != 2 {
			return ErrTooFewOptions
		}
		if correct != 1 {
			return ErrCorrectOptionCount
		}
	case QuestionTypeNumeric:
		if correct != 1 {
			return ErrCorrectOptionCount
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(q.CorrectOptions()[0].Text), 64); err != nil {
			return ErrNumericAnswer
		}
		if q.Tolerance != nil && *q.Tolerance < 0 {
			return ErrNegativeTolerance
		}
	case QuestionTypeShortText:
		if correct != 0 {
			return ErrCorrectOptionCount
		}
	}
	return nil
}

// QuestionForStudent is a question without correctness data, sent to learners.
type QuestionForStudent struct {
	ID       uuid.UUID          `json:"id"`
	Type     QuestionType       `json:"type"`
	Text     string             `json:"text"`
	Points   float64            `json:"points"`
	MediaURL *string            `json:"media_url,omitempty"`
	Position int                `json:"position"`
	Options  []OptionForStudent `json:"options,omitempty"`
}

// OptionForStudent is an option without its correctness flag.
type OptionForStudent struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
}

// OptionInput is one option of a question being authored.
type OptionInput struct {
	Text      string `json:"text" binding:"required,max=2000"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionInput is one question being authored.
type QuestionInput struct {
	Type      QuestionType  `json:"type" binding:"required,question_type"`
	Text      string        `json:"text" binding:"required,min=1,max=4000"`
	Points    *float64      `json:"points" binding:"omitempty,min=0"`
	MediaURL  *string       `json:"media_url" binding:"omitempty,url"`
	Tolerance *float64      `json:"tolerance" binding:"omitempty,min=0"`
	Options   []OptionInput `json:"options" binding:"dive"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a quiz's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// ToQuestion converts authoring input into a Question at the given position.
// Points default to one.
func (in QuestionInput) ToQuestion(quizID uuid.UUID, position int) Question {
	points := 1.0
	if in.Points != nil {
		points = *in.Points
	}
	q := Question{
		QuizID:    quizID,
		Type:      in.Type,
		Text:      in.Text,
		Points:    points,
		MediaURL:  in.MediaURL,
		Tolerance: in.Tolerance,
		Position:  position,
		Options:   make([]Option, len(in.Options)),
	}
	for i, o := range in.Options {
		q.Options[i] = Option{Text: o.Text, IsCorrect: o.IsCorrect, Position: i}
	}
	return q
}
