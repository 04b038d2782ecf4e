// Package observability provides a metrics extension for researchsync.
//
// [MetricsExtension] implements the ext hook interfaces and records
// OpenTelemetry instruments for activations, applied and discarded
// transitions, poll fetch failures and terminal outcomes. Register it on
// the engine:
//
//	eng, _ := engine.New(backend, hub,
//	    engine.WithExtension(observability.NewMetricsExtension()),
//	)
//
// Without a configured global MeterProvider the instruments are noops.
package observability
