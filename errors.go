package researchsync

import "errors"

var (
	// Engine errors.
	ErrStartFailed  = errors.New("researchsync: start failed")
	ErrNoActiveJob  = errors.New("researchsync: no active job")
	ErrEngineClosed = errors.New("researchsync: engine closed")

	// Collaborator errors.
	ErrJobNotFound = errors.New("researchsync: job not found")
	ErrTransport   = errors.New("researchsync: transport error")
	ErrRateLimited = errors.New("researchsync: rate limited")
)
