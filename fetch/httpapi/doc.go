// Package httpapi implements job.Backend against the research REST API.
//
// Routes:
//
//	POST /research/{platform}/{market_id}  start a job (202, {job_id, status})
//	GET  /research/{platform}/{market_id}  canonical job for a key (404 when none)
//	GET  /research/job/{job_id}            job snapshot
//	GET  /research/jobs                    all known jobs
//
// Response status codes map onto the root sentinel errors: 404 to
// researchsync.ErrJobNotFound, 429 to researchsync.ErrRateLimited, and
// every other failure to researchsync.ErrTransport.
//
// Each request runs inside an OpenTelemetry client span and waits on a
// client-side token bucket when WithRateLimit is set.
//
// Usage:
//
//	c := httpapi.New("http://localhost:3000",
//	    httpapi.WithRateLimit(5, 10),
//	)
//	eng, err := engine.New(c, sub)
package httpapi
