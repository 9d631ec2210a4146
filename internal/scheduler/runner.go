// Package scheduler runs the relay's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"price-relay/internal/logger"
	"price-relay/internal/observability"
)

// Job is one run of a periodic activity.
type Job func(ctx context.Context) error

// Runner schedules jobs. A job never overlaps with itself: a run that is
// due while the previous one is still going is skipped. Panics are recovered.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	now     func() time.Time
}

// New creates a runner whose jobs receive baseCtx.
func New(baseCtx context.Context, l *zap.Logger) *Runner {
	if l == nil {
		l = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := logger.NewCronLogger(l)
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			// Recover must sit inside SkipIfStillRunning: the skip wrapper only
			// releases its slot when the wrapped job returns normally.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger:  l.Named("scheduler"),
		baseCtx: baseCtx,
		now:     time.Now,
	}
}

// Add registers job under name on spec, e.g. "@every 10s".
func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		r.run(name, job)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return id, nil
}

func (r *Runner) run(name string, job Job) error {
	started := r.now()
	err := job(r.baseCtx)
	finished := r.now()
	elapsed := finished.Sub(started)

	observability.RecordJobRun(name, err, elapsed.Seconds(), finished.Unix())
	if err != nil {
		r.logger.Warn("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	r.logger.Debug("job finished", zap.String("job", name), zap.Duration("elapsed", elapsed))
	return nil
}

// Start begins running scheduled jobs in the background.
func (r *Runner) Start() {
	r.logger.Info("scheduler started", zap.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop prevents new runs and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("scheduler stopped")
}
