package grading_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/grading"
	"github.com/stemsi/exstem-quiz/internal/model"
)

func ptr[T any](v T) *T { return &v }

func option(text string, correct bool) model.Option {
	return model.Option{ID: uuid.New(), Text: text, IsCorrect: correct}
}

func question(t model.QuestionType, points float64, opts ...model.Option) model.Question {
	q := model.Question{ID: uuid.New(), Type: t, Points: points, Options: opts}
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
	}
	return q
}

func answer(q model.Question, payload string) model.Answer {
	return model.Answer{ID: uuid.New(), QuestionID: q.ID, Payload: json.RawMessage(payload)}
}

func choice(ids ...uuid.UUID) string {
	b, _ := json.Marshal(model.ChoicePayload{SelectedOptionIDs: ids})
	return string(b)
}

func gradeOne(t *testing.T, q model.Question, payload string) grading.Report {
	t.Helper()
	return grading.NewEngine().GradeAttempt([]model.Question{q}, []model.Answer{answer(q, payload)})
}

func TestMCQSingle(t *testing.T) {
	a, b, c := option("A", true), option("B", false), option("C", false)
	q := question(model.QuestionTypeMCQSingle, 2, a, b, c)

	tests := []struct {
		name    string
		payload string
		correct bool
		points  float64
	}{
		{"correct option", choice(a.ID), true, 2},
		{"wrong option", choice(b.ID), false, 0},
		{"two options selected", choice(a.ID, b.ID), false, 0},
		{"nothing selected", `{"selected_option_ids":[]}`, false, 0},
		{"null selection", `{"selected_option_ids":null}`, false, 0},
		{"foreign option id", choice(uuid.New()), false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := gradeOne(t, q, tc.payload)
			if len(rep.Failures) != 0 {
				t.Fatalf("unexpected failures: %+v", rep.Failures)
			}
			if len(rep.Grades) != 1 {
				t.Fatalf("grades = %d, want 1", len(rep.Grades))
			}
			g := rep.Grades[0]
			if g.IsCorrect != tc.correct || g.PointsAwarded != tc.points {
				t.Errorf("got correct=%v points=%v, want %v/%v", g.IsCorrect, g.PointsAwarded, tc.correct, tc.points)
			}
		})
	}
}

func TestMCQMultiIsExact(t *testing.T) {
	a, b, c := option("A", true), option("B", false), option("C", true)
	q := question(model.QuestionTypeMCQMulti, 3, a, b, c)

	tests := []struct {
		name    string
		payload string
		correct bool
	}{
		{"exact set", choice(a.ID, c.ID), true},
		{"exact set other order", choice(c.ID, a.ID), true},
		{"duplicates collapse", choice(a.ID, c.ID, a.ID), true},
		{"proper subset", choice(a.ID), false},
		{"superset", choice(a.ID, b.ID, c.ID), false},
		{"disjoint", choice(b.ID), false},
		{"empty", `{"selected_option_ids":[]}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := gradeOne(t, q, tc.payload)
			if len(rep.Grades) != 1 {
				t.Fatalf("grades = %d, want 1 (failures %+v)", len(rep.Grades), rep.Failures)
			}
			g := rep.Grades[0]
			if g.IsCorrect != tc.correct {
				t.Errorf("is_correct = %v, want %v", g.IsCorrect, tc.correct)
			}
			want := 0.0
			if tc.correct {
				want = 3
			}
			if g.PointsAwarded != want {
				t.Errorf("points = %v, want %v", g.PointsAwarded, want)
			}
		})
	}
}

func TestTrueFalse(t *testing.T) {
	tests := []struct {
		name        string
		correctText string
		payload     string
		correct     bool
	}{
		{"True text, answered true", "True", `{"bool":true}`, true},
		{"true text, answered true", "true", `{"bool":true}`, true},
		{"T text, answered true", "T", `{"bool":true}`, true},
		{"True text, answered false", "True", `{"bool":false}`, false},
		{"False text, answered false", "False", `{"bool":false}`, true},
		{"other text implies false", "Yes", `{"bool":false}`, true},
		{"other text, answered true", "TRUE", `{"bool":true}`, false},
		{"null bool", "True", `{"bool":null}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := question(model.QuestionTypeTrueFalse, 1, option(tc.correctText, true), option("other", false))
			rep := gradeOne(t, q, tc.payload)
			if len(rep.Grades) != 1 {
				t.Fatalf("grades = %d, want 1 (failures %+v)", len(rep.Grades), rep.Failures)
			}
			if rep.Grades[0].IsCorrect != tc.correct {
				t.Errorf("is_correct = %v, want %v", rep.Grades[0].IsCorrect, tc.correct)
			}
		})
	}
}

func TestNumericTolerance(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		tolerance *float64
		value     string
		correct   bool
	}{
		{"inside tolerance", "10", ptr(0.5), "10.4", true},
		{"outside tolerance", "10", ptr(0.5), "10.6", false},
		{"exactly upper bound", "10", ptr(0.5), "10.5", true},
		{"exactly lower bound", "10", ptr(0.5), "9.5", true},
		{"one unit beyond", "10", ptr(0.5), "11.5", false},
		{"small tolerance boundary", "0.3", ptr(0.1), "0.4", true},
		{"no tolerance exact", "42", nil, "42", true},
		{"no tolerance off", "42", nil, "42.0001", false},
		{"key with spaces", " 3.5 ", nil, "3.5", true},
		{"null number", "1", nil, "null", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := question(model.QuestionTypeNumeric, 1, option(tc.key, true))
			q.Tolerance = tc.tolerance
			rep := gradeOne(t, q, `{"number":`+tc.value+`}`)
			if len(rep.Grades) != 1 {
				t.Fatalf("grades = %d, want 1 (failures %+v)", len(rep.Grades), rep.Failures)
			}
			if rep.Grades[0].IsCorrect != tc.correct {
				t.Errorf("is_correct = %v, want %v", rep.Grades[0].IsCorrect, tc.correct)
			}
		})
	}
}

func TestShortTextIsSkipped(t *testing.T) {
	q := question(model.QuestionTypeShortText, 5)
	rep := gradeOne(t, q, `{"text":"photosynthesis"}`)
	if len(rep.Grades) != 0 || len(rep.Failures) != 0 {
		t.Fatalf("short_text must not be graded: %+v", rep)
	}
	if rep.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", rep.Skipped)
	}
}

func TestSkipsEmptyAndForeignAnswers(t *testing.T) {
	a := option("A", true)
	q := question(model.QuestionTypeMCQSingle, 1, a, option("B", false))
	unknown := question(model.QuestionType("essay"), 1)

	answers := []model.Answer{
		{QuestionID: q.ID},
		{QuestionID: uuid.New(), Payload: json.RawMessage(choice(a.ID))},
		answer(unknown, `{"text":"x"}`),
	}
	rep := grading.NewEngine().GradeAttempt([]model.Question{q, unknown}, answers)
	if len(rep.Grades) != 0 || len(rep.Failures) != 0 {
		t.Fatalf("nothing should be graded: %+v", rep)
	}
	if rep.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", rep.Skipped)
	}
}

func TestFailuresDoNotAbortGrading(t *testing.T) {
	a := option("A", true)
	good := question(model.QuestionTypeMCQSingle, 2, a, option("B", false))
	malformed := question(model.QuestionTypeNumeric, 1, option("7", true))
	noKey := question(model.QuestionTypeMCQMulti, 1, option("X", false), option("Y", false))
	badKey := question(model.QuestionTypeNumeric, 1, option("seven", true))

	questions := []model.Question{malformed, good, noKey, badKey}
	answers := []model.Answer{
		answer(malformed, `{"number":"seven"}`),
		answer(good, choice(a.ID)),
		answer(noKey, choice(uuid.New())),
		answer(badKey, `{"number":7}`),
	}

	rep := grading.NewEngine().GradeAttempt(questions, answers)
	if len(rep.Grades) != 1 || rep.Grades[0].QuestionID != good.ID || rep.Grades[0].PointsAwarded != 2 {
		t.Fatalf("good answer not graded: %+v", rep.Grades)
	}
	if len(rep.Failures) != 3 {
		t.Fatalf("failures = %d, want 3: %+v", len(rep.Failures), rep.Failures)
	}
	if !errors.Is(rep.Failures[0].Err, model.ErrMalformedPayload) {
		t.Errorf("failure[0] = %v, want malformed payload", rep.Failures[0].Err)
	}
	if !errors.Is(rep.Failures[1].Err, grading.ErrNoCorrectOption) {
		t.Errorf("failure[1] = %v, want no correct option", rep.Failures[1].Err)
	}
	if !errors.Is(rep.Failures[2].Err, grading.ErrBadAnswerKey) {
		t.Errorf("failure[2] = %v, want bad answer key", rep.Failures[2].Err)
	}
}

func TestGradingIsDeterministic(t *testing.T) {
	a, b := option("A", true), option("B", true)
	q1 := question(model.QuestionTypeMCQMulti, 3, a, b, option("C", false))
	q2 := question(model.QuestionTypeNumeric, 2, option("10", true))
	q2.Tolerance = ptr(0.5)
	questions := []model.Question{q1, q2}
	answers := []model.Answer{answer(q2, `{"number":10.2}`), answer(q1, choice(b.ID, a.ID))}

	e := grading.NewEngine()
	first := e.GradeAttempt(questions, answers)
	second := e.GradeAttempt(questions, answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reports differ:\n%+v\n%+v", first, second)
	}
	if first.Grades[0].QuestionID != q1.ID {
		t.Errorf("grades must follow question order")
	}
	if first.Points() != 5 {
		t.Errorf("points = %v, want 5", first.Points())
	}
}

func TestTotalPoints(t *testing.T) {
	answers := []model.Answer{
		{PointsAwarded: ptr(2.0)},
		{PointsAwarded: ptr(0.0)},
		{},
		{PointsAwarded: ptr(1.5)},
	}
	if got := grading.TotalPoints(answers); got != 3.5 {
		t.Errorf("TotalPoints = %v, want 3.5", got)
	}
	if got := grading.TotalPoints(nil); got != 0 {
		t.Errorf("TotalPoints(nil) = %v, want 0", got)
	}
}
