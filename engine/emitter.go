package engine

import (
	"context"

	"github.com/xraph/researchsync/ext"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/reconcile"
	"github.com/xraph/researchsync/update"
)

// extEmitter adapts *ext.Registry to satisfy reconcile.Emitter. reconcile
// defines the interface, ext.Registry provides the implementation, and the
// engine plugs them together.
type extEmitter struct {
	r *ext.Registry
}

func (a extEmitter) SnapshotApplied(ctx context.Context, j *job.ResearchJob) {
	a.r.EmitSnapshotApplied(ctx, j)
}

func (a extEmitter) UpdateApplied(ctx context.Context, j *job.ResearchJob, u update.Update) {
	a.r.EmitUpdateApplied(ctx, j, u)
}

func (a extEmitter) Discarded(ctx context.Context, src reconcile.Source, kind, jobID string, reason reconcile.Reason) {
	a.r.EmitUpdateDiscarded(ctx, ext.Discard{
		Source: string(src),
		Kind:   kind,
		JobID:  jobID,
		Reason: string(reason),
	})
}

func (a extEmitter) Terminal(ctx context.Context, j *job.ResearchJob) {
	a.r.EmitJobTerminal(ctx, j)
}
