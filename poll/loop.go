// Package poll implements the Poll Loop: the low-frequency fallback channel
// that periodically fetches a full snapshot of the active job and submits it
// to the reconciler.
//
// A Loop is idle until Run is called for an activation. It then fetches on
// a fixed period and returns as soon as the job is terminal, the activation
// goes stale, or its context is cancelled. Fetch errors are logged and
// retried on the next tick; they never stop the loop.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/reconcile"
)

// SnapshotFetcher fetches the current snapshot of a job by id.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, jobID string) (*job.ResearchJob, error)
}

// Loop polls one activation at a time.
type Loop struct {
	fetcher  SnapshotFetcher
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	onError  func(ctx context.Context, jobID string, err error)

	active atomic.Bool
	ticks  atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the fixed period between fetches.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) { l.interval = d }
}

// WithFetchTimeout bounds each fetch. Zero disables the per-fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithErrorHandler registers fn to observe fetch errors.
func WithErrorHandler(fn func(ctx context.Context, jobID string, err error)) Option {
	return func(l *Loop) { l.onError = fn }
}

// New creates a Loop.
func New(fetcher SnapshotFetcher, opts ...Option) *Loop {
	l := &Loop{
		fetcher:  fetcher,
		interval: 5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Active reports whether Run is currently polling.
func (l *Loop) Active() bool { return l.active.Load() }

// Ticks returns the number of fetches attempted since the Loop was created.
func (l *Loop) Ticks() int64 { return l.ticks.Load() }

// Run polls for act until the job is terminal, act goes stale, or ctx is
// done. The first fetch happens after initialDelay; zero fetches
// immediately. Run always returns nil: per-tick errors are absorbed.
func (l *Loop) Run(ctx context.Context, act *reconcile.Activation, initialDelay time.Duration) error {
	if act.Terminal() {
		return nil
	}

	l.active.Store(true)
	defer l.active.Store(false)

	l.logger.Debug("poll loop started",
		slog.String("job_id", act.JobID()),
		slog.Duration("interval", l.interval),
	)

	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("poll loop cancelled", slog.String("job_id", act.JobID()))
			return nil
		case <-timer.C:
		}

		if _, err := l.Tick(ctx, act); err != nil && ctx.Err() == nil {
			l.logger.Warn("poll fetch failed",
				slog.String("job_id", act.JobID()),
				slog.String("error", err.Error()),
			)
			if l.onError != nil {
				l.onError(ctx, act.JobID(), err)
			}
		}

		if act.Terminal() {
			l.logger.Debug("poll loop stopped", slog.String("job_id", act.JobID()))
			return nil
		}
		timer.Reset(l.interval)
	}
}

// Tick performs one fetch for act and submits the result. The outcome is
// meaningful only when err is nil.
func (l *Loop) Tick(ctx context.Context, act *reconcile.Activation) (reconcile.Outcome, error) {
	l.ticks.Add(1)

	fetchCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	snap, err := l.fetcher.FetchSnapshot(fetchCtx, act.JobID())
	if err != nil {
		return reconcile.Outcome{}, err
	}
	if snap == nil {
		return reconcile.Outcome{}, errEmptySnapshot
	}
	return act.ApplySnapshot(ctx, snap), nil
}

var errEmptySnapshot = errors.New("poll: fetcher returned no snapshot")
