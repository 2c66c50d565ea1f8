package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/metrics"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const (
	autosavePollTimeout = time.Second
	autosaveRetryDelay  = 5 * time.Second
)

// AnswerRecorder replays a queued autosave against the attempt state machine.
type AnswerRecorder interface {
	RecordQueuedAnswer(ctx context.Context, job model.AutosaveJob) error
}

// AutosaveQueue buffers autosaves that could not be written synchronously.
type AutosaveQueue struct {
	rdb *redis.Client
}

// NewAutosaveQueue creates a new AutosaveQueue.
func NewAutosaveQueue(rdb *redis.Client) *AutosaveQueue {
	return &AutosaveQueue{rdb: rdb}
}

// Enqueue appends job to the retry queue.
func (q *AutosaveQueue) Enqueue(ctx context.Context, job model.AutosaveJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal autosave: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err()
}

// AutosaveWorker consumes persist_answers_queue and replays each answer
// through the attempt service, so deadlines are still enforced.
type AutosaveWorker struct {
	rdb      *redis.Client
	recorder AnswerRecorder
	log      zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(rdb *redis.Client, recorder AnswerRecorder, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		rdb:      rdb,
		recorder: recorder,
		log:      log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the poll timeout passes.
	result, err := w.rdb.BLPop(ctx, autosavePollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if retry := w.handle(ctx, result[1]); retry {
		// The item is already popped; put it back even when shutting down.
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistAnswersQueue, result[1])
		wait(ctx, autosaveRetryDelay)
	}
}

// wait pauses for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle replays one queued item and reports whether it should be retried.
func (w *AutosaveWorker) handle(ctx context.Context, raw string) bool {
	var job model.AutosaveJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return false
	}

	err := w.recorder.RecordQueuedAnswer(ctx, job)
	switch {
	case err == nil:
		return false
	case service.IsRejection(err):
		metrics.AutosaveDropped.Inc()
		w.log.Warn().Err(err).
			Str("attempt_id", job.AttemptID.String()).
			Str("question_id", job.QuestionID.String()).
			Msg("Autosave rejected, dropping")
		return false
	default:
		w.log.Error().Err(err).
			Str("attempt_id", job.AttemptID.String()).
			Msg("Persist error, retrying in 5s")
		return true
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		if w.handle(ctx, raw) {
			w.log.Error().Msg("Drain persist error, leaving queue for next start")
			w.rdb.LPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
