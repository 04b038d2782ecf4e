package job

import "context"

// Fetcher retrieves full job snapshots.
type Fetcher interface {
	// FetchSnapshot returns the job with the given id. It returns an error
	// wrapping researchsync.ErrJobNotFound or researchsync.ErrTransport.
	FetchSnapshot(ctx context.Context, jobID string) (*ResearchJob, error)

	// FetchSnapshotByKey returns the canonical job for key, or (nil, nil)
	// when none exists. Errors wrap researchsync.ErrTransport.
	FetchSnapshotByKey(ctx context.Context, key Key) (*ResearchJob, error)
}

// Starter creates research jobs.
type Starter interface {
	// StartJob begins a job for key and returns its id. Errors wrap
	// researchsync.ErrTransport or researchsync.ErrRateLimited.
	StartJob(ctx context.Context, key Key) (string, error)
}

// Backend is a Fetcher that can also start jobs.
type Backend interface {
	Fetcher
	Starter
}
