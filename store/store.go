package store

import (
	"context"

	"github.com/xraph/researchsync/job"
)

// Store is the aggregate backend interface.
type Store interface {
	job.Backend

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
