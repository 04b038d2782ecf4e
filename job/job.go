package job

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle status of a research job.
type Status string

const (
	// StatusPending means the job was accepted but has not started.
	StatusPending Status = "pending"
	// StatusRunning means the producer is working on the job.
	StatusRunning Status = "running"
	// StatusCompleted means the job finished with a report.
	StatusCompleted Status = "completed"
	// StatusFailed means the job ended with an error.
	StatusFailed Status = "failed"
)

// runningPhases are producer pipeline phases reported in place of "running".
var runningPhases = map[string]struct{}{
	"decomposing":  {},
	"searching":    {},
	"analyzing":    {},
	"synthesizing": {},
}

// ParseStatus maps a wire status to a Status. Producer pipeline phases map
// to StatusRunning; the returned phase is the raw value for them and empty
// otherwise.
func ParseStatus(s string) (status Status, phase string, err error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Status(v) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return Status(v), "", nil
	}
	if _, ok := runningPhases[v]; ok {
		return StatusRunning, v, nil
	}
	return "", "", fmt.Errorf("job: unknown status %q", s)
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses for monotonicity: pending < running < terminal.
// Unknown values rank below pending.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusRunning:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Progress is the producer's progress indicator. It is meaningful only while
// the job is running.
type Progress struct {
	CurrentStep       string `json:"current_step" msgpack:"current_step"`
	TotalSteps        int    `json:"total_steps" msgpack:"total_steps"`
	CompletedSteps    int    `json:"completed_steps" msgpack:"completed_steps"`
	CurrentQuery      string `json:"current_query,omitempty" msgpack:"current_query,omitempty"`
	SearchesCompleted int    `json:"searches_completed" msgpack:"searches_completed"`
	SearchesTotal     int    `json:"searches_total" msgpack:"searches_total"`
}

// Fraction returns CompletedSteps/TotalSteps in [0,1], or 0 when the total
// is unknown.
func (p Progress) Fraction() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	f := float64(p.CompletedSteps) / float64(p.TotalSteps)
	if f > 1 {
		return 1
	}
	return f
}

// ResearchJob is one research run as seen by the consumer.
type ResearchJob struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	MarketID    string    `json:"market_id"`
	MarketTitle string    `json:"market_title,omitempty"`
	Status      Status    `json:"status"`
	Phase       string    `json:"phase,omitempty"`
	Progress    *Progress `json:"progress,omitempty"`
	Report      *Report   `json:"report,omitempty"`
	Error       string    `json:"error,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the logical key the job was started for.
func (j *ResearchJob) Key() Key {
	return Key{Platform: j.Platform, MarketID: j.MarketID}
}

// Clone returns a deep copy so callers can never mutate reconciler state.
func (j *ResearchJob) Clone() *ResearchJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.Progress != nil {
		p := *j.Progress
		out.Progress = &p
	}
	out.Report = j.Report.Clone()
	return &out
}

// Normalize rewrites a producer pipeline phase found in Status to
// StatusRunning and records the phase. Fetchers call it on decoded
// snapshots.
func (j *ResearchJob) Normalize() error {
	st, phase, err := ParseStatus(string(j.Status))
	if err != nil {
		return err
	}
	j.Status = st
	if phase != "" {
		j.Phase = phase
	}
	return nil
}
