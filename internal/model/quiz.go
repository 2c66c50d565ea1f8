package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizStatus enumerates the authoring states of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
)

// ShowResultsPolicy controls when a learner may see their score.
type ShowResultsPolicy string

const (
	ShowResultsImmediate  ShowResultsPolicy = "immediate"
	ShowResultsAfterClose ShowResultsPolicy = "after_close"
	ShowResultsNever      ShowResultsPolicy = "never"
)

// Valid reports whether p is a known policy.
func (p ShowResultsPolicy) Valid() bool {
	switch p {
	case ShowResultsImmediate, ShowResultsAfterClose, ShowResultsNever:
		return true
	}
	return false
}

// Quiz is a timed set of questions authored by a teacher for a subject.
type Quiz struct {
	ID                uuid.UUID         `json:"id"`
	SubjectID         *uuid.UUID        `json:"subject_id,omitempty"`
	AuthorID          uuid.UUID         `json:"author_id"`
	Title             string            `json:"title"`
	TimeLimitMinutes  *int              `json:"time_limit_minutes,omitempty"`
	AttemptsAllowed   int               `json:"attempts_allowed"`
	StartAt           *time.Time        `json:"start_at,omitempty"`
	EndAt             *time.Time        `json:"end_at,omitempty"`
	ShowResultsPolicy ShowResultsPolicy `json:"show_results_policy"`
	Status            QuizStatus        `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// MaxAttempts returns the attempts quota. Anything below one counts as one.
func (q *Quiz) MaxAttempts() int {
	if q.AttemptsAllowed < 1 {
		return 1
	}
	return q.AttemptsAllowed
}

// WindowContains reports whether t lies inside [StartAt, EndAt]. A missing
// bound is open.
func (q *Quiz) WindowContains(t time.Time) bool {
	if q.StartAt != nil && t.Before(*q.StartAt) {
		return false
	}
	if q.EndAt != nil && t.After(*q.EndAt) {
		return false
	}
	return true
}

// TimeLimit returns the configured time limit, or zero when the quiz is untimed.
func (q *Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*q.TimeLimitMinutes) * time.Minute
}

// ResultsVisible applies the show-results policy at instant now.
func (q *Quiz) ResultsVisible(now time.Time) bool {
	switch q.ShowResultsPolicy {
	case ShowResultsImmediate:
		return true
	case ShowResultsAfterClose:
		return q.EndAt != nil && now.After(*q.EndAt)
	default:
		return false
	}
}

// QuizBundle is a quiz together with its questions and their options, in
// presentation order.
type QuizBundle struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// Question looks up a question of the bundle by id.
func (b *QuizBundle) Question(id uuid.UUID) (*Question, bool) {
	for i := range b.Questions {
		if b.Questions[i].ID == id {
			return &b.Questions[i], true
		}
	}
	return nil, false
}

// HasManualQuestions reports whether any question needs a human to grade it.
func (b *QuizBundle) HasManualQuestions() bool {
	for _, q := range b.Questions {
		if !q.Type.AutoGradable() {
			return true
		}
	}
	return false
}

// CreateQuizRequest is the payload for creating a new draft quiz.
type CreateQuizRequest struct {
	Title             string            `json:"title" binding:"required,min=3,max=255"`
	SubjectID         *uuid.UUID        `json:"subject_id" binding:"omitempty"`
	TimeLimitMinutes  *int              `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	AttemptsAllowed   int               `json:"attempts_allowed" binding:"omitempty,min=1,max=100"`
	StartAt           *time.Time        `json:"start_at" binding:"omitempty"`
	EndAt             *time.Time        `json:"end_at" binding:"omitempty,gtfield=StartAt"`
	ShowResultsPolicy ShowResultsPolicy `json:"show_results_policy" binding:"omitempty,results_policy"`
}

// QuizPaper is the student-facing view of a quiz: no correctness flags and no
// numeric answers.
type QuizPaper struct {
	QuizID           uuid.UUID            `json:"quiz_id"`
	Title            string               `json:"title"`
	TimeLimitMinutes *int                 `json:"time_limit_minutes,omitempty"`
	Questions        []QuestionForStudent `json:"questions"`
}

// MaxScore is the sum of the points of every question.
func (b *QuizBundle) MaxScore() float64 {
	var total float64
	for _, q := range b.Questions {
		total += q.Points
	}
	return total
}
