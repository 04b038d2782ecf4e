// Package update defines the incremental research updates delivered over the
// push channel, and their wire codecs.
//
// [Update] is a closed sum type: the seven variants below are its only
// implementations. Consumers switch on the concrete type.
package update

import "github.com/xraph/researchsync/job"

// Kind is the wire tag of an update variant.
type Kind string

const (
	KindStatusChanged     Kind = "status_changed"
	KindProgressUpdate    Kind = "progress_update"
	KindCompleted         Kind = "completed"
	KindFailed            Kind = "failed"
	KindFollowUpStarted   Kind = "followup_started"
	KindDocumentEditing   Kind = "document_editing"
	KindFollowUpCompleted Kind = "followup_completed"
)

// Update is one incremental event about a research job.
type Update interface {
	// Kind returns the wire tag.
	Kind() Kind
	// TargetJob returns the job id the producer attached to the update.
	TargetJob() string

	sealed()
}

// StatusChanged reports a new status. Phase holds the producer's pipeline
// phase when Status is running.
type StatusChanged struct {
	JobID  string
	Status job.Status
	Phase  string
}

// ProgressUpdate reports progress of a running job.
type ProgressUpdate struct {
	JobID    string
	Progress job.Progress
}

// Completed is the authoritative success signal.
type Completed struct {
	JobID  string
	Report job.Report
}

// Failed is the authoritative failure signal.
type Failed struct {
	JobID string
	Error string
}

// FollowUpStarted opens a follow-up: the streaming buffer restarts empty.
type FollowUpStarted struct {
	JobID string
}

// DocumentEditing carries one chunk of follow-up text, in send order.
type DocumentEditing struct {
	JobID        string
	ContentChunk string
}

// FollowUpCompleted closes a follow-up with the refined report. JobID is
// the rotated id the producer ran the follow-up under.
type FollowUpCompleted struct {
	JobID  string
	Report job.Report
}

func (StatusChanged) Kind() Kind     { return KindStatusChanged }
func (ProgressUpdate) Kind() Kind    { return KindProgressUpdate }
func (Completed) Kind() Kind         { return KindCompleted }
func (Failed) Kind() Kind            { return KindFailed }
func (FollowUpStarted) Kind() Kind   { return KindFollowUpStarted }
func (DocumentEditing) Kind() Kind   { return KindDocumentEditing }
func (FollowUpCompleted) Kind() Kind { return KindFollowUpCompleted }

func (u StatusChanged) TargetJob() string     { return u.JobID }
func (u ProgressUpdate) TargetJob() string    { return u.JobID }
func (u Completed) TargetJob() string         { return u.JobID }
func (u Failed) TargetJob() string            { return u.JobID }
func (u FollowUpStarted) TargetJob() string   { return u.JobID }
func (u DocumentEditing) TargetJob() string   { return u.JobID }
func (u FollowUpCompleted) TargetJob() string { return u.JobID }

func (StatusChanged) sealed()     {}
func (ProgressUpdate) sealed()    {}
func (Completed) sealed()         {}
func (Failed) sealed()            {}
func (FollowUpStarted) sealed()   {}
func (DocumentEditing) sealed()   {}
func (FollowUpCompleted) sealed() {}

// Scoped reports whether u is filtered by job id. followup_completed is
// not: the producer emits it under the rotated job id. The reconciler only
// accepts it inside a follow-up opened by an in-scope followup_started.
func Scoped(u Update) bool {
	switch u.(type) {
	case FollowUpCompleted:
		return false
	default:
		return true
	}
}

// InScope reports whether u should be applied while jobID is active.
func InScope(u Update, jobID string) bool {
	if jobID == "" {
		return false
	}
	return !Scoped(u) || u.TargetJob() == jobID
}
