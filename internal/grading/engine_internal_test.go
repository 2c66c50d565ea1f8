package grading

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

func TestPanickingGraderIsContained(t *testing.T) {
	a := model.Option{ID: uuid.New(), Text: "A", IsCorrect: true}
	tf := model.Question{ID: uuid.New(), Type: model.QuestionTypeTrueFalse, Points: 1, Options: []model.Option{
		{ID: uuid.New(), Text: "True", IsCorrect: true},
		{ID: uuid.New(), Text: "False"},
	}}
	mcq := model.Question{ID: uuid.New(), Type: model.QuestionTypeMCQSingle, Points: 1, Options: []model.Option{
		a, {ID: uuid.New(), Text: "B"},
	}}
	choice, _ := json.Marshal(model.ChoicePayload{SelectedOptionIDs: []uuid.UUID{a.ID}})

	e := NewEngine()
	e.graders[model.QuestionTypeTrueFalse] = GraderFunc(func(*model.Question, model.AnswerPayload) (bool, error) { panic("boom") })

	rep := e.GradeAttempt([]model.Question{tf, mcq}, []model.Answer{
		{QuestionID: tf.ID, Payload: json.RawMessage(`{"bool":true}`)},
		{QuestionID: mcq.ID, Payload: choice},
	})
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, ErrGraderPanic) {
		t.Fatalf("failures = %+v, want one panic", rep.Failures)
	}
	if len(rep.Grades) != 1 || !rep.Grades[0].IsCorrect {
		t.Fatalf("mcq not graded after panic: %+v", rep.Grades)
	}
	if rep.Points() != 1 {
		t.Errorf("points = %v, want 1", rep.Points())
	}
}
