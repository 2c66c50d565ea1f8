package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AnswerView is an answer as shown to the learner.
type AnswerView struct {
	QuestionID    uuid.UUID       `json:"question_id"`
	Payload       json.RawMessage `json:"answer_payload"`
	IsCorrect     *bool           `json:"is_correct,omitempty"`
	PointsAwarded *float64        `json:"points_awarded,omitempty"`
}

// AttemptResult is the learner's view of one attempt.
type AttemptResult struct {
	Attempt model.Attempt `json:"attempt"`
	// Deadline is set while the attempt is open on a timed quiz. It excludes
	// the server grace period.
	Deadline       *time.Time   `json:"deadline,omitempty"`
	ResultsVisible bool         `json:"results_visible"`
	MaxScore       *float64     `json:"max_score,omitempty"`
	Answers        []AnswerView `json:"answers"`
}

func buildResult(b *model.QuizBundle, a *model.Attempt, answers []model.Answer, now time.Time) (*AttemptResult, error) {
	views := make([]AnswerView, 0, len(answers))
	if err := copier.Copy(&views, &answers); err != nil {
		return nil, fmt.Errorf("copy answers: %w", err)
	}

	r := &AttemptResult{Attempt: *a, Answers: views}
	if a.Status == model.AttemptStatusInProgress {
		if d, ok := a.Deadline(b.Quiz.TimeLimit(), 0); ok {
			r.Deadline = &d
		}
	} else {
		r.ResultsVisible = b.Quiz.ResultsVisible(now)
	}

	if r.ResultsVisible {
		maxScore := b.MaxScore()
		r.MaxScore = &maxScore
		return r, nil
	}

	r.Attempt.Score = nil
	for i := range r.Answers {
		r.Answers[i].IsCorrect = nil
		r.Answers[i].PointsAwarded = nil
	}
	return r, nil
}

// buildPaper strips correctness flags and tolerances from the bundle.
func buildPaper(b *model.QuizBundle) (*model.QuizPaper, error) {
	questions := make([]model.QuestionForStudent, 0, len(b.Questions))
	if err := copier.Copy(&questions, &b.Questions); err != nil {
		return nil, fmt.Errorf("copy questions: %w", err)
	}
	for i := range questions {
		// Numeric answers live in the option text; learners type their own.
		if questions[i].Type == model.QuestionTypeNumeric {
			questions[i].Options = nil
		}
	}
	return &model.QuizPaper{
		QuizID:           b.Quiz.ID,
		Title:            b.Quiz.Title,
		TimeLimitMinutes: b.Quiz.TimeLimitMinutes,
		Questions:        questions,
	}, nil
}
