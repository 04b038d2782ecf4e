package researchsync

import "time"

// ProgressRule decides which channel owns the progress indicator when
// snapshots and updates disagree.
type ProgressRule string

const (
	// ProgressPushAuthoritative ignores snapshot progress once a
	// progress_update has been applied during the current activation.
	ProgressPushAuthoritative ProgressRule = "push_authoritative"
	// ProgressLastWriteWins keeps whichever value arrived last.
	ProgressLastWriteWins ProgressRule = "last_write_wins"
)

// Config holds configuration for the synchronization engine.
type Config struct {
	// PollInterval is the fixed period between snapshot fetches.
	PollInterval time.Duration

	// FetchTimeout bounds a single snapshot fetch issued by the poll loop.
	// Zero means no per-fetch timeout.
	FetchTimeout time.Duration

	// ProgressRule selects how snapshot and pushed progress are merged.
	ProgressRule ProgressRule

	// ListenerQueueSize is the number of pushed updates buffered between
	// the transport callback and the reconciler. Updates beyond it are
	// dropped, which the push channel's at-most-once contract allows.
	ListenerQueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      5 * time.Second,
		FetchTimeout:      15 * time.Second,
		ProgressRule:      ProgressPushAuthoritative,
		ListenerQueueSize: 256,
	}
}
