package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/grading"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// memStore is an in-memory implementation of every store the services use.
type memStore struct {
	mu       sync.Mutex
	bundles  map[uuid.UUID]*model.QuizBundle
	attempts map[uuid.UUID]*model.Attempt
	answers  map[uuid.UUID]map[uuid.UUID]*model.Answer

	// beforeCreate runs inside CreateAttempt before the uniqueness check.
	beforeCreate   func(quizID, studentID uuid.UUID)
	beforeUpsert   func()
	saveGradesErr  error
	upsertErr      error
	seq            time.Duration
	publishedCalls int
}

func newMemStore() *memStore {
	return &memStore{
		bundles:  make(map[uuid.UUID]*model.QuizBundle),
		attempts: make(map[uuid.UUID]*model.Attempt),
		answers:  make(map[uuid.UUID]map[uuid.UUID]*model.Answer),
	}
}

func cloneBundle(b *model.QuizBundle) *model.QuizBundle {
	raw, _ := json.Marshal(b)
	var out model.QuizBundle
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (m *memStore) FetchQuizBundle(_ context.Context, quizID uuid.UUID) (*model.QuizBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[quizID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBundle(b), nil
}

func (m *memStore) Create(_ context.Context, q *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	m.bundles[q.ID] = &model.QuizBundle{Quiz: *q}
	return nil
}

func (m *memStore) ReplaceQuestions(_ context.Context, quizID uuid.UUID, questions []model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[quizID]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Quiz.Status != model.QuizStatusDraft {
		return repository.ErrStatusConflict
	}
	for i := range questions {
		questions[i].ID = uuid.New()
		for j := range questions[i].Options {
			questions[i].Options[j].ID = uuid.New()
			questions[i].Options[j].QuestionID = questions[i].ID
		}
	}
	b.Questions = append([]model.Question(nil), questions...)
	return nil
}

func (m *memStore) Publish(_ context.Context, quizID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[quizID]
	if !ok || b.Quiz.Status != model.QuizStatusDraft {
		return repository.ErrStatusConflict
	}
	b.Quiz.Status = model.QuizStatusPublished
	m.publishedCalls++
	return nil
}

func (m *memStore) CreateAttempt(_ context.Context, quizID, studentID uuid.UUID, startedAt time.Time) (*model.Attempt, error) {
	if m.beforeCreate != nil {
		m.beforeCreate(quizID, studentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && a.Status == model.AttemptStatusInProgress {
			return nil, repository.ErrAttemptInProgress
		}
	}
	a := &model.Attempt{
		ID:        uuid.New(),
		QuizID:    quizID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: startedAt,
	}
	m.attempts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memStore) GetAttempt(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) sorted(keep func(*model.Attempt) bool) []model.Attempt {
	var out []model.Attempt
	for _, a := range m.attempts {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (m *memStore) ListAttempts(_ context.Context, quizID, studentID uuid.UUID) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a *model.Attempt) bool { return a.QuizID == quizID && a.StudentID == studentID }), nil
}

func (m *memStore) UpdateAttempt(_ context.Context, id uuid.UUID, from model.AttemptStatus, upd model.AttemptUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok || a.Status != from {
		return repository.ErrStatusConflict
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.SubmittedAt != nil {
		t := *upd.SubmittedAt
		a.SubmittedAt = &t
	}
	if upd.DurationSeconds != nil {
		d := *upd.DurationSeconds
		a.DurationSeconds = &d
	}
	if upd.Score != nil {
		s := *upd.Score
		a.Score = &s
	}
	return nil
}

func (m *memStore) ListOverdue(_ context.Context, now time.Time, grace time.Duration, limit int) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(a *model.Attempt) bool {
		b, ok := m.bundles[a.QuizID]
		if !ok || a.Status != model.AttemptStatusInProgress {
			return false
		}
		d, timed := a.Deadline(b.Quiz.TimeLimit(), grace)
		return timed && now.After(d)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListUnscored(_ context.Context, limit int) ([]model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(a *model.Attempt) bool {
		return a.Status == model.AttemptStatusSubmitted && a.Score == nil
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListByQuiz(_ context.Context, quizID uuid.UUID, page, perPage int) ([]model.Attempt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(a *model.Attempt) bool { return a.QuizID == quizID })
	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) UpsertAnswer(_ context.Context, attemptID, questionID uuid.UUID, payload json.RawMessage) error {
	if hook := m.beforeUpsert; hook != nil {
		m.beforeUpsert = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if a, ok := m.attempts[attemptID]; !ok || a.Status != model.AttemptStatusInProgress {
		return repository.ErrStatusConflict
	}
	byQ, ok := m.answers[attemptID]
	if !ok {
		byQ = make(map[uuid.UUID]*model.Answer)
		m.answers[attemptID] = byQ
	}
	m.seq += time.Millisecond
	byQ[questionID] = &model.Answer{
		ID:         uuid.New(),
		AttemptID:  attemptID,
		QuestionID: questionID,
		Payload:    append(json.RawMessage(nil), payload...),
		UpdatedAt:  time.Unix(0, 0).Add(m.seq),
	}
	return nil
}

func (m *memStore) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Answer
	for _, a := range m.answers[attemptID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) SaveGrades(_ context.Context, attemptID uuid.UUID, grades []model.AnswerGrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveGradesErr != nil {
		return m.saveGradesErr
	}
	byQ := m.answers[attemptID]
	for _, a := range byQ {
		a.IsCorrect, a.PointsAwarded = nil, nil
	}
	for _, g := range grades {
		if a, ok := byQ[g.QuestionID]; ok {
			c, p := g.IsCorrect, g.PointsAwarded
			a.IsCorrect, a.PointsAwarded = &c, &p
		}
	}
	return nil
}

func (m *memStore) attempt(id uuid.UUID) model.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.attempts[id]
}

func (m *memStore) answer(attemptID, questionID uuid.UUID) *model.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[attemptID][questionID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// recordingCache records warmed bundles.
type recordingCache struct {
	warmed []uuid.UUID
	err    error
}

func (c *recordingCache) Warm(_ context.Context, b *model.QuizBundle) error {
	c.warmed = append(c.warmed, b.Quiz.ID)
	return c.err
}

var errBoom = errors.New("boom")

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ─── Fixtures ─────────────────────────────────────────────────────────────

type fixture struct {
	store *memStore
	clock *fakeClock
	svc   *AttemptService
}

const testGrace = 30 * time.Second

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	store := newMemStore()
	clock := &fakeClock{t: baseTime}
	svc := NewAttemptService(store, store, store, grading.NewEngine(), testGrace, zerolog.Nop(), WithClock(clock.Now))
	return &fixture{store: store, clock: clock, svc: svc}
}

func opt(text string, correct bool) model.Option {
	return model.Option{ID: uuid.New(), Text: text, IsCorrect: correct}
}

func question(t model.QuestionType, points float64, opts ...model.Option) model.Question {
	q := model.Question{ID: uuid.New(), Type: t, Text: string(t) + " question", Points: points, Options: opts}
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
		q.Options[i].Position = i
	}
	return q
}

// addQuiz stores a published quiz and returns it. Questions get positions in
// the order given.
func (f *fixture) addQuiz(mutate func(*model.Quiz), questions ...model.Question) *model.QuizBundle {
	q := model.Quiz{
		ID:                uuid.New(),
		AuthorID:          uuid.New(),
		Title:             "Fractions",
		AttemptsAllowed:   1,
		ShowResultsPolicy: model.ShowResultsImmediate,
		Status:            model.QuizStatusPublished,
	}
	if mutate != nil {
		mutate(&q)
	}
	for i := range questions {
		questions[i].QuizID = q.ID
		questions[i].Position = i
	}
	b := &model.QuizBundle{Quiz: q, Questions: questions}
	f.store.bundles[q.ID] = b
	return cloneBundle(b)
}

func choicePayload(ids ...uuid.UUID) json.RawMessage {
	raw, _ := json.Marshal(model.ChoicePayload{SelectedOptionIDs: ids})
	return raw
}

func ptr[T any](v T) *T { return &v }
