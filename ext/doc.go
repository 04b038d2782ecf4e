// Package ext defines the extension system for researchsync.
//
// Extensions are notified of engine lifecycle events and can react to
// them: recording metrics, writing logs, forwarding state to a UI, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobTerminal(ctx context.Context, j *job.ResearchJob) error {
//	    log.Printf("job %s finished as %s", j.ID, j.Status)
//	    return nil
//	}
//
// # Activation Hooks
//
//   - [Activated]: the engine began tracking a job id
//   - [Deactivated]: the engine stopped tracking a job id
//
// # Reconciliation Hooks
//
//   - [SnapshotApplied]: a polled snapshot was merged
//   - [UpdateApplied]: a pushed update was merged
//   - [UpdateDiscarded]: a snapshot or update was rejected by the id or terminal guard
//   - [JobTerminal]: the tracked job reached completed or failed
//
// # Other Hooks
//
//   - [FetchFailed]: a poll tick's snapshot fetch failed (it will be retried)
//   - [Shutdown]: the engine is closing
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
