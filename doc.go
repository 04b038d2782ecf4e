// Package researchsync keeps a consumer-side view of a long-running research
// job consistent while its state arrives over two unreliable channels: a
// periodic snapshot poll and a push stream of incremental updates.
//
// The root package holds the shared sentinel errors and configuration. The
// engine package is the entry point for applications:
//
//	eng := engine.New(backend, hub,
//	    engine.WithLogger(logger),
//	    engine.WithConfig(researchsync.DefaultConfig()),
//	)
//	defer eng.Close()
//
//	st, err := eng.Start(ctx, job.Key{Platform: job.PlatformKalshi, MarketID: "KXBTC-25"})
//
// # Architecture
//
// Snapshots (poll package) and updates (push package) never write job state
// directly. Both submit candidate transitions to a single reconcile.Reconciler,
// which enforces the two ordering rules the channels cannot: updates for a job
// other than the active one are dropped, and a terminal status is never left.
//
// Every activation of a job id is identified by a TypeID token. Workers hold
// an Activation bound to that token, so a late write from a torn-down worker
// is discarded regardless of teardown timing.
package researchsync
