package audithook

// Audit event actions. Each constant becomes the Action field of the
// audit event.
const (
	ActionTrackingStarted    = "tracking.started"
	ActionTrackingStopped    = "tracking.stopped"
	ActionJobCompleted       = "job.completed"
	ActionJobFailed          = "job.failed"
	ActionFollowUpCompleted  = "job.followup_completed"
	ActionTransitionRejected = "transition.rejected"
	ActionFetchFailed        = "fetch.failed"
)

// Audit event categories group related actions.
const (
	CategoryTracking = "researchsync.tracking"
	CategoryJob      = "researchsync.job"
)

// ResourceJob is the Resource field of every audit event.
const ResourceJob = "research_job"

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTrackingStarted,
		ActionTrackingStopped,
		ActionJobCompleted,
		ActionJobFailed,
		ActionFollowUpCompleted,
		ActionTransitionRejected,
		ActionFetchFailed,
	}
}
