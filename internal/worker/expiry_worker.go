package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// ExpirySweeper closes attempts that ran past their time limit.
type ExpirySweeper interface {
	SubmitExpired(ctx context.Context) (service.SweepReport, error)
}

// ExpiryWorker runs the sweeper on a cron schedule. Runs never overlap.
type ExpiryWorker struct {
	sweeper ExpirySweeper
	cron    *cron.Cron
	running atomic.Bool
	log     zerolog.Logger
}

// NewExpiryWorker schedules sweeps with spec, e.g. "@every 30s".
func NewExpiryWorker(sweeper ExpirySweeper, spec string, log zerolog.Logger) (*ExpiryWorker, error) {
	w := &ExpiryWorker{
		sweeper: sweeper,
		cron:    cron.New(),
		log:     log.With().Str("component", "expiry_worker").Logger(),
	}
	if _, err := w.cron.AddFunc(spec, w.run); err != nil {
		return nil, fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}
	return w, nil
}

// Start runs the schedule until ctx is cancelled, then waits for an
// in-flight sweep to finish. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	w.cron.Start()
	<-ctx.Done()
	w.log.Info().Msg("Worker stopping...")
	<-w.cron.Stop().Done()
	w.log.Info().Msg("Worker stopped")
}

func (w *ExpiryWorker) run() {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Debug().Msg("Previous sweep still running, skipping")
		return
	}
	defer w.running.Store(false)
	w.Sweep(context.Background())
}

// Sweep performs one pass immediately.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	report, err := w.sweeper.SubmitExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	if report.Submitted+report.Rescored+report.Failed > 0 {
		w.log.Info().
			Int("submitted", report.Submitted).
			Int("rescored", report.Rescored).
			Int("failed", report.Failed).
			Msg("Expiry sweep done")
	}
}
