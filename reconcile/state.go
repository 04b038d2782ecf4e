package reconcile

import "github.com/xraph/researchsync/job"

// Source names the channel a candidate transition came from.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceUpdate   Source = "update"
)

// Reason explains why a candidate transition was discarded. Discards are not
// errors: they are the deliberate no-ops of the id and terminal guards.
type Reason string

const (
	ReasonInactive        Reason = "inactive"
	ReasonStaleActivation Reason = "stale_activation"
	ReasonJobMismatch     Reason = "job_mismatch"
	ReasonEmpty           Reason = "empty"
	ReasonTerminal        Reason = "terminal"
	ReasonRegression      Reason = "regression"
	ReasonNotRunning      Reason = "not_running"
	ReasonNoFollowUp      Reason = "no_followup"
	ReasonUnknown         Reason = "unknown_update"
)

// Outcome reports what happened to one candidate transition.
type Outcome struct {
	Applied bool
	Reason  Reason
}

func applied() Outcome            { return Outcome{Applied: true} }
func discarded(r Reason) Outcome  { return Outcome{Reason: r} }
func (o Outcome) Discarded() bool { return !o.Applied }

// State is a point-in-time view of the reconciler. Job is a deep copy owned
// by the caller.
type State struct {
	// JobID is the tracked job id; empty when nothing is active.
	JobID string
	// Job is the last known job, nil until a first snapshot or update lands.
	Job *job.ResearchJob
	// Buffer is the streamed follow-up text; empty unless FollowUp is set.
	Buffer string
	// FollowUp reports whether a follow-up is in progress.
	FollowUp bool
	// Version increments on every applied transition and on (de)activation.
	Version uint64
}

// Active reports whether a job is being tracked.
func (s State) Active() bool { return s.JobID != "" }

// Terminal reports whether the tracked job reached a terminal status.
func (s State) Terminal() bool { return s.Job != nil && s.Job.Status.IsTerminal() }
