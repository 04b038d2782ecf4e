package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// Emitter receives notifications after a transition is decided. It is
// called outside the reconciler lock, in decision order for any one caller.
type Emitter interface {
	SnapshotApplied(ctx context.Context, j *job.ResearchJob)
	UpdateApplied(ctx context.Context, j *job.ResearchJob, u update.Update)
	Discarded(ctx context.Context, src Source, kind, jobID string, reason Reason)
	Terminal(ctx context.Context, j *job.ResearchJob)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithProgressRule selects how snapshot and pushed progress are merged.
func WithProgressRule(rule researchsync.ProgressRule) Option {
	return func(r *Reconciler) { r.rule = rule }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) Option {
	return func(r *Reconciler) { r.emitter = e }
}

// Reconciler is the single writer of job state and the streaming buffer.
// All methods are safe for concurrent use; apply operations are atomic with
// respect to each other.
type Reconciler struct {
	rule    researchsync.ProgressRule
	logger  *slog.Logger
	emitter Emitter
	now     func() time.Time

	mu             sync.Mutex
	token          id.ID
	jobID          string
	job            *job.ResearchJob
	buf            strings.Builder
	followUp       bool
	pushedProgress bool
	version        uint64

	watchers map[*watcher]struct{}
	closed   bool
	done     chan struct{}
}

// New creates an inactive Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		rule:     researchsync.ProgressPushAuthoritative,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		watchers: make(map[*watcher]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Activate starts tracking jobID under a fresh activation token, discarding
// any previous job, buffer and follow-up state. The returned Activation is
// the only handle through which workers may write for this activation.
func (r *Reconciler) Activate(jobID string) *Activation {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked()
	r.token = id.NewActivation()
	r.jobID = jobID
	r.version++
	r.publishLocked()

	return &Activation{r: r, token: r.token, jobID: jobID}
}

// Deactivate stops tracking and discards all state. Safe to call when
// nothing is active.
func (r *Reconciler) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jobID == "" && r.job == nil {
		return
	}
	r.clearLocked()
	r.version++
	r.publishLocked()
}

func (r *Reconciler) clearLocked() {
	r.token = id.Nil
	r.jobID = ""
	r.job = nil
	r.buf.Reset()
	r.followUp = false
	r.pushedProgress = false
}

// ActiveJobID returns the tracked job id, or "" when inactive.
func (r *Reconciler) ActiveJobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID
}

// CurrentState returns a deep copy of the current state.
func (r *Reconciler) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Reconciler) stateLocked() State {
	return State{
		JobID:    r.jobID,
		Job:      r.job.Clone(),
		Buffer:   r.buf.String(),
		FollowUp: r.followUp,
		Version:  r.version,
	}
}

// ApplySnapshot merges a full snapshot for the active job, whichever
// activation is current.
func (r *Reconciler) ApplySnapshot(ctx context.Context, snap *job.ResearchJob) Outcome {
	return r.applySnapshot(ctx, id.Nil, snap)
}

// ApplyUpdate merges an incremental update for the active job, whichever
// activation is current.
func (r *Reconciler) ApplyUpdate(ctx context.Context, u update.Update) Outcome {
	return r.applyUpdate(ctx, id.Nil, u)
}

// effects collects emitter calls decided under the lock.
type effects struct {
	snapshot *job.ResearchJob
	updated  *job.ResearchJob
	terminal *job.ResearchJob
	u        update.Update
}

func (r *Reconciler) applySnapshot(ctx context.Context, token id.ID, snap *job.ResearchJob) Outcome {
	var (
		out    Outcome
		fx     effects
		active string
	)
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		active = r.jobID
		out = r.snapshotLocked(token, snap, &fx)
	}()

	snapID := ""
	if snap != nil {
		snapID = snap.ID
	}
	r.finish(ctx, SourceSnapshot, "snapshot", snapID, active, out, fx)
	return out
}

func (r *Reconciler) snapshotLocked(token id.ID, snap *job.ResearchJob, fx *effects) Outcome {
	if r.jobID == "" {
		return discarded(ReasonInactive)
	}
	if !token.IsNil() && token.String() != r.token.String() {
		return discarded(ReasonStaleActivation)
	}
	if snap == nil {
		return discarded(ReasonEmpty)
	}
	if snap.ID != r.jobID {
		return discarded(ReasonJobMismatch)
	}

	cur := r.job
	if cur != nil && cur.Status.IsTerminal() && snap.Status != cur.Status {
		// A non-terminal poll response raced a terminal push, or the
		// snapshot names the other terminal status.
		return discarded(ReasonTerminal)
	}

	next := snap.Clone()
	if cur != nil {
		if next.Status.Rank() < cur.Status.Rank() {
			next.Status = cur.Status
			next.Phase = cur.Phase
		}
		if next.Report == nil {
			next.Report = cur.Report.Clone()
		}
		if next.Status == job.StatusFailed && next.Error == "" {
			next.Error = cur.Error
		}
		if r.rule == researchsync.ProgressPushAuthoritative && r.pushedProgress {
			next.Progress = cloneProgress(cur.Progress)
		}
	}

	r.commitLocked(next)
	fx.snapshot = next.Clone()
	if next.Status.IsTerminal() && (cur == nil || !cur.Status.IsTerminal()) {
		fx.terminal = fx.snapshot
	}
	return applied()
}

func (r *Reconciler) applyUpdate(ctx context.Context, token id.ID, u update.Update) Outcome {
	var (
		out    Outcome
		fx     effects
		active string
	)
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		active = r.jobID
		out = r.updateLocked(token, u, &fx)
	}()

	kind, target := "", ""
	if u != nil {
		kind, target = string(u.Kind()), u.TargetJob()
	}
	r.finish(ctx, SourceUpdate, kind, target, active, out, fx)
	return out
}

func (r *Reconciler) updateLocked(token id.ID, u update.Update, fx *effects) Outcome {
	if r.jobID == "" {
		return discarded(ReasonInactive)
	}
	if !token.IsNil() && token.String() != r.token.String() {
		return discarded(ReasonStaleActivation)
	}
	if u == nil {
		return discarded(ReasonEmpty)
	}
	if !update.InScope(u, r.jobID) {
		return discarded(ReasonJobMismatch)
	}

	cur := r.job
	if cur == nil {
		// Push can beat the first snapshot; start from a pending skeleton.
		cur = &job.ResearchJob{ID: r.jobID, Status: job.StatusPending}
	}

	var next *job.ResearchJob
	switch v := u.(type) {
	case update.StatusChanged:
		if cur.Status.IsTerminal() {
			return discarded(ReasonTerminal)
		}
		if v.Status.Rank() < cur.Status.Rank() {
			return discarded(ReasonRegression)
		}
		next = cur.Clone()
		next.Status = v.Status
		next.Phase = v.Phase

	case update.ProgressUpdate:
		if cur.Status != job.StatusRunning {
			return discarded(ReasonNotRunning)
		}
		next = cur.Clone()
		next.Progress = cloneProgress(&v.Progress)
		r.pushedProgress = true

	case update.Completed:
		if cur.Status == job.StatusFailed {
			return discarded(ReasonTerminal)
		}
		if cur.Status == job.StatusCompleted && cur.Report.Equal(&v.Report) {
			return applied()
		}
		next = cur.Clone()
		next.Status = job.StatusCompleted
		next.Phase = ""
		next.Report = v.Report.Clone()
		next.Error = ""

	case update.Failed:
		if cur.Status == job.StatusCompleted {
			return discarded(ReasonTerminal)
		}
		if cur.Status == job.StatusFailed && cur.Error == v.Error {
			return applied()
		}
		next = cur.Clone()
		next.Status = job.StatusFailed
		next.Phase = ""
		next.Error = v.Error

	case update.FollowUpStarted:
		r.buf.Reset()
		r.followUp = true
		r.version++
		r.publishLocked()
		fx.u = u
		return applied()

	case update.DocumentEditing:
		if !r.followUp {
			return discarded(ReasonNoFollowUp)
		}
		r.buf.WriteString(v.ContentChunk)
		r.version++
		r.publishLocked()
		fx.u = u
		return applied()

	case update.FollowUpCompleted:
		if !r.followUp {
			return discarded(ReasonNoFollowUp)
		}
		r.buf.Reset()
		r.followUp = false
		next = cur.Clone()
		next.Report = v.Report.Clone()

	default:
		r.logger.Error("unhandled update type", slog.String("kind", string(u.Kind())))
		return discarded(ReasonUnknown)
	}

	next.UpdatedAt = r.now()
	r.commitLocked(next)
	fx.u = u
	fx.updated = next.Clone()
	if next.Status.IsTerminal() && !cur.Status.IsTerminal() {
		fx.terminal = fx.updated
	}
	return applied()
}

func (r *Reconciler) commitLocked(next *job.ResearchJob) {
	r.job = next
	r.version++
	r.publishLocked()
}

// finish logs discards and runs emitter calls outside the lock.
func (r *Reconciler) finish(ctx context.Context, src Source, kind, target, active string, out Outcome, fx effects) {
	if out.Discarded() {
		r.logger.Debug("transition discarded",
			slog.String("source", string(src)),
			slog.String("kind", kind),
			slog.String("job_id", target),
			slog.String("active_job_id", active),
			slog.String("reason", string(out.Reason)),
		)
		if r.emitter != nil {
			r.emitter.Discarded(ctx, src, kind, target, out.Reason)
		}
		return
	}
	if r.emitter == nil {
		return
	}
	if fx.snapshot != nil {
		r.emitter.SnapshotApplied(ctx, fx.snapshot)
	}
	if fx.u != nil {
		r.emitter.UpdateApplied(ctx, fx.updated, fx.u)
	}
	if fx.terminal != nil {
		r.emitter.Terminal(ctx, fx.terminal)
	}
}

func cloneProgress(p *job.Progress) *job.Progress {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
