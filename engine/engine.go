package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/ext"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/poll"
	"github.com/xraph/researchsync/push"
	"github.com/xraph/researchsync/reconcile"
)

// Engine keeps one research job's state synchronized from a snapshot
// backend and an update subscriber. All methods are safe for concurrent
// use; lifecycle calls (Start, RefreshByKey, Reset, Close) are serialized.
type Engine struct {
	cfg        researchsync.Config
	backend    job.Backend
	exts       []ext.Extension
	extensions *ext.Registry
	logger     *slog.Logger

	rec      *reconcile.Reconciler
	poller   *poll.Loop
	listener *push.Listener

	mu      sync.Mutex
	closed  bool
	gen     uint64 // bumped by every teardown
	act     *reconcile.Activation
	pump    *push.Pump
	cancel  context.CancelFunc
	workers *errgroup.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the engine configuration.
func WithConfig(cfg researchsync.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithPollInterval sets the poll loop period.
func WithPollInterval(d time.Duration) Option {
	return func(eng *Engine) { eng.cfg.PollInterval = d }
}

// WithFetchTimeout bounds each poll fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(eng *Engine) { eng.cfg.FetchTimeout = d }
}

// WithProgressRule selects how snapshot and pushed progress are merged.
func WithProgressRule(rule researchsync.ProgressRule) Option {
	return func(eng *Engine) { eng.cfg.ProgressRule = rule }
}

// WithLogger sets the structured logger for the engine and its workers.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// New creates an idle Engine. backend serves snapshots and starts jobs;
// sub delivers pushed updates.
func New(backend job.Backend, sub push.Subscriber, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("engine: backend is required")
	}
	if sub == nil {
		return nil, errors.New("engine: update subscriber is required")
	}

	eng := &Engine{
		cfg:     researchsync.DefaultConfig(),
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	switch eng.cfg.ProgressRule {
	case researchsync.ProgressPushAuthoritative, researchsync.ProgressLastWriteWins:
	default:
		return nil, fmt.Errorf("engine: unknown progress rule %q", eng.cfg.ProgressRule)
	}
	if eng.cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("engine: poll interval must be positive, got %s", eng.cfg.PollInterval)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	eng.rec = reconcile.New(
		reconcile.WithProgressRule(eng.cfg.ProgressRule),
		reconcile.WithLogger(eng.logger),
		reconcile.WithEmitter(extEmitter{eng.extensions}),
	)
	eng.poller = poll.New(backend,
		poll.WithInterval(eng.cfg.PollInterval),
		poll.WithFetchTimeout(eng.cfg.FetchTimeout),
		poll.WithLogger(eng.logger),
		poll.WithErrorHandler(eng.extensions.EmitFetchFailed),
	)
	eng.listener = push.NewListener(sub,
		push.WithQueueSize(eng.cfg.ListenerQueueSize),
		push.WithLogger(eng.logger),
	)
	return eng, nil
}

// Start begins a new job for key and tracks it. It returns once the first
// snapshot has been applied. On failure the error wraps
// researchsync.ErrStartFailed and the engine is left deactivated. Backend
// calls run without the engine lock, so Reset and Close never wait on them;
// a Start overtaken by another lifecycle call fails as superseded.
func (eng *Engine) Start(ctx context.Context, key job.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", researchsync.ErrStartFailed, err)
	}

	eng.mu.Lock()
	if eng.closed {
		eng.mu.Unlock()
		return "", researchsync.ErrEngineClosed
	}
	eng.teardownLocked(ctx)
	gen := eng.gen
	eng.mu.Unlock()

	jobID, err := eng.backend.StartJob(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: start %s: %w", researchsync.ErrStartFailed, key, err)
	}

	eng.mu.Lock()
	if err := eng.supersededLocked(gen); err != nil {
		eng.mu.Unlock()
		return "", err
	}
	act := eng.rec.Activate(jobID)
	pump := eng.listener.Listen(act)
	eng.mu.Unlock()

	snap, err := eng.backend.FetchSnapshot(ctx, jobID)
	if err == nil && snap == nil {
		err = researchsync.ErrJobNotFound
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if serr := eng.supersededLocked(gen); serr != nil {
		// The later call already deactivated the reconciler.
		pump.Close()
		return "", serr
	}
	if err != nil {
		pump.Close()
		eng.rec.Deactivate()
		return "", fmt.Errorf("%w: first snapshot for %s: %w", researchsync.ErrStartFailed, jobID, err)
	}
	act.ApplySnapshot(ctx, snap)

	eng.spawnLocked(ctx, act, pump)
	eng.logger.Info("research job started",
		slog.String("job_id", jobID),
		slog.String("key", key.String()),
	)
	return jobID, nil
}

// supersededLocked reports whether a Reset, Close or other activation ran
// since generation gen was taken. eng.mu must be held.
func (eng *Engine) supersededLocked(gen uint64) error {
	if eng.closed {
		return researchsync.ErrEngineClosed
	}
	if eng.gen != gen {
		return fmt.Errorf("%w: superseded by a later lifecycle call", researchsync.ErrStartFailed)
	}
	return nil
}

// Refresh pulls one snapshot for the active job outside the poll cadence.
// It is a no-op when no job is active. Fetch errors are returned.
func (eng *Engine) Refresh(ctx context.Context) error {
	eng.mu.Lock()
	if eng.closed {
		eng.mu.Unlock()
		return researchsync.ErrEngineClosed
	}
	act := eng.act
	eng.mu.Unlock()

	if act == nil {
		return nil
	}

	snap, err := eng.backend.FetchSnapshot(ctx, act.JobID())
	if err != nil {
		return fmt.Errorf("refresh %s: %w", act.JobID(), err)
	}
	if snap == nil {
		return fmt.Errorf("refresh %s: %w", act.JobID(), researchsync.ErrJobNotFound)
	}
	act.ApplySnapshot(ctx, snap)
	return nil
}

// RefreshByKey resolves the canonical job for key and tracks it, replacing
// the current activation. Use it after a follow-up rotates the job id. When
// no job exists for key it returns researchsync.ErrJobNotFound and leaves
// the current activation untouched. The lookup runs before the engine lock
// is taken.
func (eng *Engine) RefreshByKey(ctx context.Context, key job.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}

	snap, err := eng.backend.FetchSnapshotByKey(ctx, key)
	if err != nil {
		return "", fmt.Errorf("refresh %s: %w", key, err)
	}
	if snap == nil {
		return "", fmt.Errorf("refresh %s: %w", key, researchsync.ErrJobNotFound)
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.closed {
		return "", researchsync.ErrEngineClosed
	}

	eng.teardownLocked(ctx)

	act := eng.rec.Activate(snap.ID)
	pump := eng.listener.Listen(act)
	act.ApplySnapshot(ctx, snap)

	eng.spawnLocked(ctx, act, pump)
	eng.logger.Info("research job resumed",
		slog.String("job_id", snap.ID),
		slog.String("key", key.String()),
	)
	return snap.ID, nil
}

// Reset stops tracking and discards all state. Safe to call at any time,
// including when nothing is active or while a Start is waiting on the
// backend; that Start then fails as superseded.
func (eng *Engine) Reset(ctx context.Context) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	eng.teardownLocked(ctx)
}

// Close resets the engine, closes all Watch channels and rejects later
// lifecycle calls with researchsync.ErrEngineClosed.
func (eng *Engine) Close(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.closed {
		return nil
	}
	eng.closed = true
	eng.teardownLocked(ctx)
	eng.rec.Close()
	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("research sync engine closed")
	return nil
}

// State returns the current state.
func (eng *Engine) State() reconcile.State { return eng.rec.CurrentState() }

// ActiveJobID returns the tracked job id, or "" when idle.
func (eng *Engine) ActiveJobID() string { return eng.rec.ActiveJobID() }

// Watch returns a channel of state changes; see reconcile.Reconciler.Watch.
func (eng *Engine) Watch(ctx context.Context) <-chan reconcile.State { return eng.rec.Watch(ctx) }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Config returns the effective configuration.
func (eng *Engine) Config() researchsync.Config { return eng.cfg }

// spawnLocked starts the workers for act. eng.mu must be held.
func (eng *Engine) spawnLocked(ctx context.Context, act *reconcile.Activation, pump *push.Pump) {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(wctx)

	g.Go(func() error { return eng.poller.Run(gctx, act, eng.cfg.PollInterval) })
	g.Go(func() error { return pump.Run(gctx) })

	eng.act = act
	eng.pump = pump
	eng.cancel = cancel
	eng.workers = g

	eng.extensions.EmitActivated(ctx, act.JobID(), act.Token())
}

// teardownLocked deactivates the reconciler, then stops and waits for the
// workers of the previous activation. eng.mu must be held.
func (eng *Engine) teardownLocked(ctx context.Context) {
	eng.gen++
	eng.rec.Deactivate()
	if eng.act == nil {
		return
	}

	jobID := eng.act.JobID()
	eng.cancel()
	if err := eng.workers.Wait(); err != nil {
		eng.logger.Warn("research sync worker error",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	eng.pump.Close()

	eng.act = nil
	eng.pump = nil
	eng.cancel = nil
	eng.workers = nil

	eng.extensions.EmitDeactivated(ctx, jobID)
	eng.logger.Debug("research job deactivated", slog.String("job_id", jobID))
}
