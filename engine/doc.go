// Package engine wires the research sync subsystems together and exposes
// the Engine facade: Start, Refresh, RefreshByKey and Reset.
//
// An Engine tracks at most one job at a time. Each activation runs two
// workers, the poll loop and the push pump, in one errgroup; both write only
// through a reconcile.Activation bound to that activation's token. Tearing
// an activation down deactivates the reconciler first, so a worker that is
// still finishing a fetch or holding a queued update can no longer change
// state, and only then cancels and waits for the workers.
//
//	eng, err := engine.New(backend, hub,
//	    engine.WithLogger(logger),
//	    engine.WithExtension(observability.NewMetricsExtension()),
//	)
//	if err != nil { ... }
//	defer eng.Close(ctx)
//
//	jobID, err := eng.Start(ctx, job.Key{Platform: job.PlatformKalshi, MarketID: "FED-25DEC"})
//	for s := range eng.Watch(ctx) {
//	    render(s)
//	}
//
// This package sits above every subsystem package and below the
// application layer.
package engine
