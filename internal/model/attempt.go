package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// Terminal reports whether the status can no longer accept answers.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusGraded
}

// Attempt is one learner's pass at one quiz.
type Attempt struct {
	ID              uuid.UUID     `json:"id"`
	QuizID          uuid.UUID     `json:"quiz_id"`
	StudentID       uuid.UUID     `json:"student_id"`
	Status          AttemptStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	SubmittedAt     *time.Time    `json:"submitted_at,omitempty"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`
	Score           *float64      `json:"score,omitempty"`
}

// Deadline returns the server-side deadline of the attempt for the given time
// limit and grace period. ok is false for untimed quizzes.
func (a *Attempt) Deadline(limit, grace time.Duration) (deadline time.Time, ok bool) {
	if limit <= 0 {
		return time.Time{}, false
	}
	return a.StartedAt.Add(limit + grace), true
}

// AttemptUpdate carries the attempt fields to change. Nil fields are left
// untouched.
type AttemptUpdate struct {
	Status          *AttemptStatus
	SubmittedAt     *time.Time
	DurationSeconds *int
	Score           *float64
}

// SubmitTrigger records who initiated a submission.
type SubmitTrigger string

const (
	SubmitTriggerLearner SubmitTrigger = "learner"
	SubmitTriggerExpiry  SubmitTrigger = "expiry"
)

// SubmitAttemptRequest is the payload for submitting an attempt.
type SubmitAttemptRequest struct {
	ElapsedSeconds *int `json:"elapsed_seconds" binding:"omitempty,min=0"`
}
