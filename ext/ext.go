package ext

import (
	"context"

	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Activation hooks
// ──────────────────────────────────────────────────

// Activated is called after the engine starts tracking jobID.
type Activated interface {
	OnActivated(ctx context.Context, jobID string, token id.ID) error
}

// Deactivated is called after the engine stops tracking jobID.
type Deactivated interface {
	OnDeactivated(ctx context.Context, jobID string) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// SnapshotApplied is called after a snapshot is merged. j is the merged job.
type SnapshotApplied interface {
	OnSnapshotApplied(ctx context.Context, j *job.ResearchJob) error
}

// UpdateApplied is called after a pushed update is merged. j is the merged
// job, or nil for updates that only touch the streaming buffer.
type UpdateApplied interface {
	OnUpdateApplied(ctx context.Context, j *job.ResearchJob, u update.Update) error
}

// Discard describes a rejected candidate transition.
type Discard struct {
	Source string // "snapshot" or "update"
	Kind   string
	JobID  string
	Reason string
}

// UpdateDiscarded is called when a snapshot or update is rejected.
type UpdateDiscarded interface {
	OnUpdateDiscarded(ctx context.Context, d Discard) error
}

// JobTerminal is called once per activation when the job first reaches a
// terminal status.
type JobTerminal interface {
	OnJobTerminal(ctx context.Context, j *job.ResearchJob) error
}

// ──────────────────────────────────────────────────
// Other hooks
// ──────────────────────────────────────────────────

// FetchFailed is called when a poll tick's fetch returns an error.
type FetchFailed interface {
	OnFetchFailed(ctx context.Context, jobID string, err error) error
}

// Shutdown is called when the engine is closing.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
