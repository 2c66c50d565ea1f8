// Package grading scores submitted quiz answers against the quiz's answer key.
//
// Grading is a pure function of (questions, answers): it performs no I/O and
// returns the same report for the same input. Each answer is graded on its
// own; a failure on one answer never stops the others.
package grading

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Item failure causes.
var (
	ErrNoCorrectOption = errors.New("question has no correct option")
	ErrBadAnswerKey    = errors.New("answer key cannot be parsed")
	ErrGraderPanic     = errors.New("grader panicked")
)

// Grader decides whether a decoded payload answers question q correctly.
type Grader interface {
	Grade(q *model.Question, p model.AnswerPayload) (bool, error)
}

// GraderFunc adapts a function to the Grader interface.
type GraderFunc func(q *model.Question, p model.AnswerPayload) (bool, error)

func (f GraderFunc) Grade(q *model.Question, p model.AnswerPayload) (bool, error) { return f(q, p) }

// ItemFailure describes an answer that could not be graded. The answer keeps
// null grading fields and contributes nothing to the score.
type ItemFailure struct {
	QuestionID uuid.UUID
	Err        error
}

// Report is the outcome of grading one attempt.
type Report struct {
	Grades   []model.AnswerGrade
	Failures []ItemFailure
	// Skipped counts answers left alone: empty payloads, manually graded
	// types, unknown types and answers to questions outside the quiz.
	Skipped int
}

// Points sums the points awarded in the report.
func (r Report) Points() float64 {
	var total float64
	for _, g := range r.Grades {
		total += g.PointsAwarded
	}
	return total
}

// Engine routes each answer to the grader of its question type.
type Engine struct {
	graders map[model.QuestionType]Grader
}

// NewEngine creates an engine with the built-in graders. short_text has no
// grader and is always left for manual grading.
func NewEngine() *Engine {
	return &Engine{
		graders: map[model.QuestionType]Grader{
			model.QuestionTypeMCQSingle: GraderFunc(gradeMCQSingle),
			model.QuestionTypeMCQMulti:  GraderFunc(gradeMCQMulti),
			model.QuestionTypeTrueFalse: GraderFunc(gradeTrueFalse),
			model.QuestionTypeNumeric:   GraderFunc(gradeNumeric),
		},
	}
}

// GradeAttempt grades every auto-gradable answer. Grades follow the order of
// questions.
func (e *Engine) GradeAttempt(questions []model.Question, answers []model.Answer) Report {
	byQuestion := make(map[uuid.UUID]*model.Answer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	var rep Report
	matched := 0
	for i := range questions {
		q := &questions[i]
		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		matched++

		g, ok := e.graders[q.Type]
		if !ok || a.Empty() {
			rep.Skipped++
			continue
		}

		correct, err := gradeItem(g, q, a)
		if err != nil {
			rep.Failures = append(rep.Failures, ItemFailure{QuestionID: q.ID, Err: err})
			continue
		}

		grade := model.AnswerGrade{QuestionID: q.ID, IsCorrect: correct}
		if correct {
			grade.PointsAwarded = q.Points
		}
		rep.Grades = append(rep.Grades, grade)
	}
	rep.Skipped += len(byQuestion) - matched
	return rep
}

func gradeItem(g Grader, q *model.Question, a *model.Answer) (correct bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			correct, err = false, fmt.Errorf("%w: %v", ErrGraderPanic, r)
		}
	}()

	p, err := model.DecodeAnswerPayload(q.Type, a.Payload)
	if err != nil {
		return false, err
	}
	return g.Grade(q, p)
}

// TotalPoints sums PointsAwarded over graded answers. Ungraded answers count
// as zero.
func TotalPoints(answers []model.Answer) float64 {
	var total float64
	for _, a := range answers {
		if a.PointsAwarded != nil {
			total += *a.PointsAwarded
		}
	}
	return total
}
