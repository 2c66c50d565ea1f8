package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

type countingSource struct {
	bundles map[uuid.UUID]*model.QuizBundle
	calls   int
}

var errMissing = errors.New("missing")

func (s *countingSource) FetchQuizBundle(_ context.Context, id uuid.UUID) (*model.QuizBundle, error) {
	s.calls++
	b, ok := s.bundles[id]
	if !ok {
		return nil, errMissing
	}
	return b, nil
}

// deadRedis points at a port nothing listens on, so every command fails fast.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestFetchFallsBackWhenRedisIsDown(t *testing.T) {
	id := uuid.New()
	src := &countingSource{bundles: map[uuid.UUID]*model.QuizBundle{
		id: {Quiz: model.Quiz{ID: id, Title: "Fractions", Status: model.QuizStatusPublished}},
	}}
	rdb := deadRedis()
	defer rdb.Close()
	c := NewQuizCache(rdb, src, time.Minute, zerolog.Nop())

	b, err := c.FetchQuizBundle(context.Background(), id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b.Quiz.Title != "Fractions" || src.calls != 1 {
		t.Fatalf("bundle = %+v, source calls = %d", b.Quiz, src.calls)
	}

	if _, err := c.FetchQuizBundle(context.Background(), uuid.New()); !errors.Is(err, errMissing) {
		t.Errorf("source error not propagated: %v", err)
	}
}

func TestPrewarm(t *testing.T) {
	id := uuid.New()
	src := &countingSource{bundles: map[uuid.UUID]*model.QuizBundle{
		id: {Quiz: model.Quiz{ID: id, Status: model.QuizStatusPublished}},
	}}
	rdb := deadRedis()
	defer rdb.Close()
	c := NewQuizCache(rdb, src, time.Minute, zerolog.Nop())

	warmed, err := c.Prewarm(context.Background(), []uuid.UUID{id})
	if err != nil || warmed != 0 {
		t.Fatalf("warmed = %d, err = %v; cache writes must fail without aborting", warmed, err)
	}

	if _, err := c.Prewarm(context.Background(), []uuid.UUID{uuid.New()}); !errors.Is(err, errMissing) {
		t.Errorf("missing quiz err = %v", err)
	}
}
