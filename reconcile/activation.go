package reconcile

import (
	"context"

	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// Activation is a write handle bound to one activation of a job id. After
// the reconciler is deactivated or re-activated, every write through the
// handle is discarded with ReasonStaleActivation, so a worker that outlives
// its activation can never touch newer state.
type Activation struct {
	r     *Reconciler
	token id.ID
	jobID string
}

// JobID returns the job id this activation tracks.
func (a *Activation) JobID() string { return a.jobID }

// Token returns the activation token.
func (a *Activation) Token() id.ID { return a.token }

// ApplySnapshot merges snap if this activation is still current.
func (a *Activation) ApplySnapshot(ctx context.Context, snap *job.ResearchJob) Outcome {
	return a.r.applySnapshot(ctx, a.token, snap)
}

// ApplyUpdate merges u if this activation is still current.
func (a *Activation) ApplyUpdate(ctx context.Context, u update.Update) Outcome {
	return a.r.applyUpdate(ctx, a.token, u)
}

// Current reports whether this activation is still the reconciler's.
func (a *Activation) Current() bool {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	return a.currentLocked()
}

// Terminal reports whether the job reached a terminal status under this
// activation. A stale activation reports true so its workers wind down.
func (a *Activation) Terminal() bool {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	if !a.currentLocked() {
		return true
	}
	return a.r.job != nil && a.r.job.Status.IsTerminal()
}

func (a *Activation) currentLocked() bool {
	return !a.token.IsNil() && a.r.token.String() == a.token.String()
}
