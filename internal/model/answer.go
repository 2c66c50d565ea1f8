package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Answer is the persisted response of an attempt to one question.
// IsCorrect and PointsAwarded stay nil until grading.
type Answer struct {
	ID            uuid.UUID       `json:"id"`
	AttemptID     uuid.UUID       `json:"attempt_id"`
	QuestionID    uuid.UUID       `json:"question_id"`
	Payload       json.RawMessage `json:"answer_payload"`
	IsCorrect     *bool           `json:"is_correct,omitempty"`
	PointsAwarded *float64        `json:"points_awarded,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Empty reports whether the answer carries no payload at all.
func (a *Answer) Empty() bool {
	p := bytes.TrimSpace(a.Payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

// AnswerGrade is the grading outcome of one answer.
type AnswerGrade struct {
	QuestionID    uuid.UUID `json:"question_id"`
	IsCorrect     bool      `json:"is_correct"`
	PointsAwarded float64   `json:"points_awarded"`
}

// RecordAnswerRequest is the payload for autosaving one answer.
type RecordAnswerRequest struct {
	Payload json.RawMessage `json:"answer_payload" binding:"required"`
}

// ─── Answer payloads ───────────────────────────────────────────────────────

// AnswerPayload is the typed content of an answer. The concrete type is fixed
// by the question type: ChoicePayload, BoolPayload, NumberPayload or TextPayload.
type AnswerPayload interface {
	answerPayload()
}

// ChoicePayload answers mcq_single and mcq_multi questions.
type ChoicePayload struct {
	SelectedOptionIDs []uuid.UUID `json:"selected_option_ids"`
}

// BoolPayload answers true_false questions.
type BoolPayload struct {
	Value *bool `json:"bool"`
}

// NumberPayload answers numeric questions.
type NumberPayload struct {
	Value *float64 `json:"number"`
}

// TextPayload answers short_text questions.
type TextPayload struct {
	Value *string `json:"text"`
}

func (ChoicePayload) answerPayload() {}
func (BoolPayload) answerPayload()   {}
func (NumberPayload) answerPayload() {}
func (TextPayload) answerPayload()   {}

// ErrMalformedPayload is returned when a payload does not match its question type.
var ErrMalformedPayload = errors.New("malformed answer payload")

// DecodeAnswerPayload parses raw into the payload variant of question type t.
func DecodeAnswerPayload(t QuestionType, raw json.RawMessage) (AnswerPayload, error) {
	dec := func(dst any) error {
		d := json.NewDecoder(bytes.NewReader(raw))
		d.DisallowUnknownFields()
		if err := d.Decode(dst); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return nil
	}

	switch t {
	case QuestionTypeMCQSingle, QuestionTypeMCQMulti:
		var p ChoicePayload
		if err := dec(&p); err != nil {
			return nil, err
		}
		return p, nil
	case QuestionTypeTrueFalse:
		var p BoolPayload
		if err := dec(&p); err != nil {
			return nil, err
		}
		return p, nil
	case QuestionTypeNumeric:
		var p NumberPayload
		if err := dec(&p); err != nil {
			return nil, err
		}
		return p, nil
	case QuestionTypeShortText:
		var p TextPayload
		if err := dec(&p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
	}
}

// AutosaveJob is an answer write that failed synchronously and is retried by
// the autosave worker. SavedAt is when the learner sent it; the deadline is
// checked against that instant rather than the retry time.
type AutosaveJob struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	StudentID  uuid.UUID       `json:"student_id"`
	QuestionID uuid.UUID       `json:"question_id"`
	Payload    json.RawMessage `json:"answer_payload"`
	SavedAt    time.Time       `json:"saved_at"`
}
