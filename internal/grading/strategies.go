package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// numericSlack absorbs float rounding so that a value exactly at
// correct ± tolerance is accepted.
const numericSlack = 1e-9

func gradeMCQSingle(q *model.Question, p model.AnswerPayload) (bool, error) {
	choice, ok := p.(model.ChoicePayload)
	if !ok {
		return false, fmt.Errorf("%w: want choice payload, got %T", model.ErrMalformedPayload, p)
	}
	correct := q.CorrectOptions()
	if len(correct) == 0 {
		return false, ErrNoCorrectOption
	}
	if len(choice.SelectedOptionIDs) != 1 {
		return false, nil
	}
	return choice.SelectedOptionIDs[0] == correct[0].ID, nil
}

// gradeMCQMulti requires the selected set to equal the correct set exactly.
// There is no partial credit.
func gradeMCQMulti(q *model.Question, p model.AnswerPayload) (bool, error) {
	choice, ok := p.(model.ChoicePayload)
	if !ok {
		return false, fmt.Errorf("%w: want choice payload, got %T", model.ErrMalformedPayload, p)
	}
	correct := q.CorrectOptions()
	if len(correct) == 0 {
		return false, ErrNoCorrectOption
	}

	want := make(map[uuid.UUID]struct{}, len(correct))
	for _, o := range correct {
		want[o.ID] = struct{}{}
	}
	got := make(map[uuid.UUID]struct{}, len(choice.SelectedOptionIDs))
	for _, id := range choice.SelectedOptionIDs {
		got[id] = struct{}{}
	}
	return setEqual(want, got), nil
}

func gradeTrueFalse(q *model.Question, p model.AnswerPayload) (bool, error) {
	b, ok := p.(model.BoolPayload)
	if !ok {
		return false, fmt.Errorf("%w: want bool payload, got %T", model.ErrMalformedPayload, p)
	}
	correct := q.CorrectOptions()
	if len(correct) == 0 {
		return false, ErrNoCorrectOption
	}
	if b.Value == nil {
		return false, nil
	}
	return *b.Value == truthy(correct[0].Text), nil
}

func gradeNumeric(q *model.Question, p model.AnswerPayload) (bool, error) {
	n, ok := p.(model.NumberPayload)
	if !ok {
		return false, fmt.Errorf("%w: want number payload, got %T", model.ErrMalformedPayload, p)
	}
	correct := q.CorrectOptions()
	if len(correct) == 0 {
		return false, ErrNoCorrectOption
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(correct[0].Text), 64)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrBadAnswerKey, correct[0].Text)
	}
	if n.Value == nil || math.IsNaN(*n.Value) || math.IsInf(*n.Value, 0) {
		return false, nil
	}
	return math.Abs(*n.Value-want) <= tolerance(q)+numericSlack, nil
}

// truthy maps the text of a true_false option to its boolean value. Only
// "True", "true" and "T" mean true.
func truthy(text string) bool {
	switch strings.TrimSpace(text) {
	case "True", "true", "T":
		return true
	}
	return false
}

func tolerance(q *model.Question) float64 {
	if q.Tolerance == nil || math.IsNaN(*q.Tolerance) || *q.Tolerance < 0 {
		return 0
	}
	return *q.Tolerance
}

func setEqual(a, b map[uuid.UUID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
