// Package memory provides an in-memory research backend.
//
// Besides serving snapshots and starting jobs, the Store doubles as a
// producer simulation: SetStatus, SetProgress, Complete, Fail and FollowUp
// mutate a job the way a research producer would and publish the matching
// update to an attached Publisher (usually a stream.Hub).
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/store"
	"github.com/xraph/researchsync/update"
)

var _ store.Store = (*Store)(nil)

// Publisher receives updates emitted by the producer helpers.
type Publisher interface {
	Publish(u update.Update)
}

// Store is a fully in-memory backend. Safe for concurrent access.
type Store struct {
	mu sync.RWMutex

	jobs  map[string]*job.ResearchJob
	byKey map[job.Key]string // canonical job id per key

	pub Publisher
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher attaches the publisher producer helpers emit to.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:  make(map[string]*job.ResearchJob),
		byKey: make(map[job.Key]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate, Ping, Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Backend
// ──────────────────────────────────────────────────

// StartJob creates a pending job for key and makes it the key's canonical
// job.
func (s *Store) StartJob(_ context.Context, key job.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	jobID := id.NewJob().String()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &job.ResearchJob{
		ID:        jobID,
		Platform:  key.Platform,
		MarketID:  key.MarketID,
		Status:    job.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byKey[key] = jobID
	return jobID, nil
}

// FetchSnapshot returns a copy of the job, or an error wrapping
// researchsync.ErrJobNotFound.
func (s *Store) FetchSnapshot(_ context.Context, jobID string) (*job.ResearchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("memory: job %q: %w", jobID, researchsync.ErrJobNotFound)
	}
	return j.Clone(), nil
}

// FetchSnapshotByKey returns the key's canonical job, or nil if none
// exists. A completed job is reported as cached.
func (s *Store) FetchSnapshotByKey(_ context.Context, key job.Key) (*job.ResearchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	out := s.jobs[jobID].Clone()
	out.Cached = out.Status == job.StatusCompleted
	return out, nil
}

// ──────────────────────────────────────────────────
// Producer simulation
// ──────────────────────────────────────────────────

// SetStatus moves a non-terminal job to status, recording phase for
// running jobs, and publishes status_changed.
func (s *Store) SetStatus(_ context.Context, jobID string, status job.Status, phase string) error {
	err := s.mutate(jobID, func(j *job.ResearchJob) error {
		if j.Status.IsTerminal() {
			return fmt.Errorf("memory: job %q is %s", jobID, j.Status)
		}
		j.Status = status
		j.Phase = phase
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(update.StatusChanged{JobID: jobID, Status: status, Phase: phase})
	return nil
}

// SetProgress records progress and publishes progress_update.
func (s *Store) SetProgress(_ context.Context, jobID string, p job.Progress) error {
	err := s.mutate(jobID, func(j *job.ResearchJob) error {
		c := p
		j.Progress = &c
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(update.ProgressUpdate{JobID: jobID, Progress: p})
	return nil
}

// Complete marks the job completed with report and publishes completed.
func (s *Store) Complete(_ context.Context, jobID string, report job.Report) error {
	err := s.mutate(jobID, func(j *job.ResearchJob) error {
		j.Status = job.StatusCompleted
		j.Phase = ""
		j.Report = report.Clone()
		j.Error = ""
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(update.Completed{JobID: jobID, Report: report})
	return nil
}

// Fail marks the job failed and publishes failed.
func (s *Store) Fail(_ context.Context, jobID, msg string) error {
	err := s.mutate(jobID, func(j *job.ResearchJob) error {
		j.Status = job.StatusFailed
		j.Phase = ""
		j.Error = msg
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(update.Failed{JobID: jobID, Error: msg})
	return nil
}

// FollowUp runs a follow-up on a completed job the way the producer does:
// it publishes followup_started and one document_editing per chunk under
// jobID, then stores the revised report under a new job id, makes that id
// the key's canonical job and publishes followup_completed under it. It
// returns the new job id.
func (s *Store) FollowUp(_ context.Context, jobID string, chunks []string, report job.Report) (string, error) {
	s.mu.RLock()
	orig, ok := s.jobs[jobID]
	var status job.Status
	if ok {
		status = orig.Status
	}
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("memory: job %q: %w", jobID, researchsync.ErrJobNotFound)
	}
	if status != job.StatusCompleted {
		return "", fmt.Errorf("memory: follow-up on %s job %q", status, jobID)
	}

	s.publish(update.FollowUpStarted{JobID: jobID})
	for _, c := range chunks {
		s.publish(update.DocumentEditing{JobID: jobID, ContentChunk: c})
	}

	newID := id.NewJob().String()
	now := s.now()

	s.mu.Lock()
	next := s.jobs[jobID].Clone()
	next.ID = newID
	next.Report = report.Clone()
	next.CreatedAt = now
	next.UpdatedAt = now
	s.jobs[newID] = next
	s.byKey[next.Key()] = newID
	s.mu.Unlock()

	s.publish(update.FollowUpCompleted{JobID: newID, Report: report})
	return newID, nil
}

func (s *Store) mutate(jobID string, fn func(*job.ResearchJob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("memory: job %q: %w", jobID, researchsync.ErrJobNotFound)
	}
	next := j.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = s.now()
	s.jobs[jobID] = next
	return nil
}

func (s *Store) publish(u update.Update) {
	if s.pub != nil {
		s.pub.Publish(u)
	}
}
