package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type activatedEntry struct {
	name string
	hook Activated
}

type deactivatedEntry struct {
	name string
	hook Deactivated
}

type snapshotAppliedEntry struct {
	name string
	hook SnapshotApplied
}

type updateAppliedEntry struct {
	name string
	hook UpdateApplied
}

type updateDiscardedEntry struct {
	name string
	hook UpdateDiscarded
}

type jobTerminalEntry struct {
	name string
	hook JobTerminal
}

type fetchFailedEntry struct {
	name string
	hook FetchFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe to call concurrently with emits; register all
// extensions before starting the engine.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	activated       []activatedEntry
	deactivated     []deactivatedEntry
	snapshotApplied []snapshotAppliedEntry
	updateApplied   []updateAppliedEntry
	updateDiscarded []updateDiscardedEntry
	jobTerminal     []jobTerminalEntry
	fetchFailed     []fetchFailedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(Activated); ok {
		r.activated = append(r.activated, activatedEntry{name, h})
	}
	if h, ok := e.(Deactivated); ok {
		r.deactivated = append(r.deactivated, deactivatedEntry{name, h})
	}
	if h, ok := e.(SnapshotApplied); ok {
		r.snapshotApplied = append(r.snapshotApplied, snapshotAppliedEntry{name, h})
	}
	if h, ok := e.(UpdateApplied); ok {
		r.updateApplied = append(r.updateApplied, updateAppliedEntry{name, h})
	}
	if h, ok := e.(UpdateDiscarded); ok {
		r.updateDiscarded = append(r.updateDiscarded, updateDiscardedEntry{name, h})
	}
	if h, ok := e.(JobTerminal); ok {
		r.jobTerminal = append(r.jobTerminal, jobTerminalEntry{name, h})
	}
	if h, ok := e.(FetchFailed); ok {
		r.fetchFailed = append(r.fetchFailed, fetchFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitActivated notifies all extensions that implement Activated.
func (r *Registry) EmitActivated(ctx context.Context, jobID string, token id.ID) {
	for _, e := range r.activated {
		if err := e.hook.OnActivated(ctx, jobID, token); err != nil {
			r.logHookError("OnActivated", e.name, err)
		}
	}
}

// EmitDeactivated notifies all extensions that implement Deactivated.
func (r *Registry) EmitDeactivated(ctx context.Context, jobID string) {
	for _, e := range r.deactivated {
		if err := e.hook.OnDeactivated(ctx, jobID); err != nil {
			r.logHookError("OnDeactivated", e.name, err)
		}
	}
}

// EmitSnapshotApplied notifies all extensions that implement SnapshotApplied.
func (r *Registry) EmitSnapshotApplied(ctx context.Context, j *job.ResearchJob) {
	for _, e := range r.snapshotApplied {
		if err := e.hook.OnSnapshotApplied(ctx, j); err != nil {
			r.logHookError("OnSnapshotApplied", e.name, err)
		}
	}
}

// EmitUpdateApplied notifies all extensions that implement UpdateApplied.
func (r *Registry) EmitUpdateApplied(ctx context.Context, j *job.ResearchJob, u update.Update) {
	for _, e := range r.updateApplied {
		if err := e.hook.OnUpdateApplied(ctx, j, u); err != nil {
			r.logHookError("OnUpdateApplied", e.name, err)
		}
	}
}

// EmitUpdateDiscarded notifies all extensions that implement UpdateDiscarded.
func (r *Registry) EmitUpdateDiscarded(ctx context.Context, d Discard) {
	for _, e := range r.updateDiscarded {
		if err := e.hook.OnUpdateDiscarded(ctx, d); err != nil {
			r.logHookError("OnUpdateDiscarded", e.name, err)
		}
	}
}

// EmitJobTerminal notifies all extensions that implement JobTerminal.
func (r *Registry) EmitJobTerminal(ctx context.Context, j *job.ResearchJob) {
	for _, e := range r.jobTerminal {
		if err := e.hook.OnJobTerminal(ctx, j); err != nil {
			r.logHookError("OnJobTerminal", e.name, err)
		}
	}
}

// EmitFetchFailed notifies all extensions that implement FetchFailed.
func (r *Registry) EmitFetchFailed(ctx context.Context, jobID string, fetchErr error) {
	for _, e := range r.fetchFailed {
		if err := e.hook.OnFetchFailed(ctx, jobID, fetchErr); err != nil {
			r.logHookError("OnFetchFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
