// Package reconcile holds the Reconciler, the only writer of research job
// state.
//
// The poll loop submits snapshots and the push listener submits updates;
// the Reconciler decides whether each candidate transition applies. Two
// rules guard it:
//
//   - id filter: a snapshot or scoped update for any job other than the
//     active one is discarded, and so is any write made through an
//     [Activation] whose token is no longer current;
//   - terminal guard: once the status is completed or failed it never
//     changes again (until Deactivate).
//
// Status is also kept monotone in rank (pending < running < terminal), a
// report once set is only ever replaced, and progress ownership follows the
// configured researchsync.ProgressRule.
//
// Readers get [State] values: deep copies built under the lock, so a reader
// never observes a partially applied merge.
package reconcile
