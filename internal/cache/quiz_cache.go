// Package cache keeps published quiz bundles in Redis so that starting,
// autosaving and grading attempts do not reload the answer key from
// PostgreSQL on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// BundleSource loads a quiz bundle from the system of record.
type BundleSource interface {
	FetchQuizBundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error)
}

// QuizCache is a cache-aside wrapper around a BundleSource. Only published
// bundles are cached; drafts are always read through.
type QuizCache struct {
	rdb *redis.Client
	src BundleSource
	ttl time.Duration
	log zerolog.Logger
}

// NewQuizCache creates a new QuizCache.
func NewQuizCache(rdb *redis.Client, src BundleSource, ttl time.Duration, log zerolog.Logger) *QuizCache {
	return &QuizCache{
		rdb: rdb,
		src: src,
		ttl: ttl,
		log: log.With().Str("component", "quiz_cache").Logger(),
	}
}

// FetchQuizBundle returns the cached bundle, loading and caching it on a
// miss. Redis failures degrade to a direct read.
func (c *QuizCache) FetchQuizBundle(ctx context.Context, quizID uuid.UUID) (*model.QuizBundle, error) {
	key := config.CacheKey.QuizBundleKey(quizID)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var b model.QuizBundle
		if err := json.Unmarshal(data, &b); err == nil {
			return &b, nil
		}
		c.log.Warn().Str("quiz_id", quizID.String()).Msg("Corrupt bundle in cache, reloading")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Cache read failed, falling back to database")
	}

	b, err := c.src.FetchQuizBundle(ctx, quizID)
	if err != nil {
		return nil, err
	}

	// Self-heal: a published quiz missing from Redis gets re-cached.
	if b.Quiz.Status == model.QuizStatusPublished {
		if err := c.Warm(ctx, b); err != nil {
			c.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Cache self-heal failed")
		}
	}
	return b, nil
}

// Warm stores a bundle in Redis.
func (c *QuizCache) Warm(ctx context.Context, b *model.QuizBundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.QuizBundleKey(b.Quiz.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set bundle: %w", err)
	}
	c.log.Debug().
		Str("quiz_id", b.Quiz.ID.String()).
		Int("questions", len(b.Questions)).
		Msg("Quiz bundle cached")
	return nil
}

// Prewarm reloads every listed quiz from the source into Redis. It stops at
// the first source error; cache write failures are logged and skipped.
func (c *QuizCache) Prewarm(ctx context.Context, quizIDs []uuid.UUID) (int, error) {
	warmed := 0
	for _, id := range quizIDs {
		b, err := c.src.FetchQuizBundle(ctx, id)
		if err != nil {
			return warmed, fmt.Errorf("load quiz %s: %w", id, err)
		}
		if err := c.Warm(ctx, b); err != nil {
			c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Prewarm failed")
			continue
		}
		warmed++
	}
	return warmed, nil
}
