package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/researchsync/ext"
	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.Activated       = (*Extension)(nil)
	_ ext.Deactivated     = (*Extension)(nil)
	_ ext.UpdateApplied   = (*Extension)(nil)
	_ ext.UpdateDiscarded = (*Extension)(nil)
	_ ext.JobTerminal     = (*Extension)(nil)
	_ ext.FetchFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// NewLogRecorder returns a Recorder that writes each event as a structured
// log record at a level matching its severity.
func NewLogRecorder(l *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		l.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges tracking lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnActivated implements ext.Activated.
func (e *Extension) OnActivated(ctx context.Context, jobID string, token id.ID) error {
	return e.record(ctx, ActionTrackingStarted, SeverityInfo, OutcomeSuccess,
		jobID, CategoryTracking, nil,
		"activation", token.String(),
	)
}

// OnDeactivated implements ext.Deactivated.
func (e *Extension) OnDeactivated(ctx context.Context, jobID string) error {
	return e.record(ctx, ActionTrackingStopped, SeverityInfo, OutcomeSuccess,
		jobID, CategoryTracking, nil,
	)
}

// OnUpdateApplied implements ext.UpdateApplied. Only follow-up completion
// is audited; other updates are routine progress.
func (e *Extension) OnUpdateApplied(ctx context.Context, j *job.ResearchJob, u update.Update) error {
	fc, ok := u.(update.FollowUpCompleted)
	if !ok {
		return nil
	}
	kv := []any{"report_title", fc.Report.Title}
	if j != nil {
		kv = append(kv, "key", j.Key().String())
	}
	return e.record(ctx, ActionFollowUpCompleted, SeverityInfo, OutcomeSuccess,
		fc.JobID, CategoryJob, nil, kv...,
	)
}

// OnUpdateDiscarded implements ext.UpdateDiscarded.
func (e *Extension) OnUpdateDiscarded(ctx context.Context, d ext.Discard) error {
	return e.record(ctx, ActionTransitionRejected, SeverityWarning, OutcomeFailure,
		d.JobID, CategoryTracking, errors.New(d.Reason),
		"source", d.Source,
		"kind", d.Kind,
	)
}

// OnJobTerminal implements ext.JobTerminal.
func (e *Extension) OnJobTerminal(ctx context.Context, j *job.ResearchJob) error {
	if j.Status == job.StatusFailed {
		return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
			j.ID, CategoryJob, errors.New(j.Error),
			"key", j.Key().String(),
		)
	}
	kv := []any{"key", j.Key().String(), "cached", j.Cached}
	if j.Report != nil {
		kv = append(kv, "report_title", j.Report.Title)
	}
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		j.ID, CategoryJob, nil, kv...,
	)
}

// OnFetchFailed implements ext.FetchFailed.
func (e *Extension) OnFetchFailed(ctx context.Context, jobID string, fetchErr error) error {
	return e.record(ctx, ActionFetchFailed, SeverityWarning, OutcomeFailure,
		jobID, CategoryTracking, fetchErr,
	)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
