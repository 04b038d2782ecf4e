// Package job defines the research job entity, its status order, and the
// collaborator interfaces used to fetch and start jobs.
//
// # Job Entity
//
// A [ResearchJob] is the canonical consumer-side view of one research run.
// Its status moves through a total order:
//
//	pending → running → completed
//	pending → running → failed
//
// completed and failed are terminal and mutually exclusive. The producer's
// finer pipeline phases (decomposing, searching, analyzing, synthesizing)
// parse as running and are kept verbatim in [ResearchJob.Phase].
//
// # Collaborators
//
// [Fetcher] returns full snapshots by job id or by logical [Key];
// [Starter] creates a new job for a key. [Backend] is both. Implementations
// live in fetch/httpapi, store/memory and store/postgres.
package job
