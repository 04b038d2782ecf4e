// Package audithook is a researchsync extension that bridges tracking
// lifecycle events to an audit trail backend.
//
// Activations, terminal outcomes, completed follow-ups, rejected
// transitions and failed fetches each emit a structured audit event
// through the [Recorder] interface, with a severity (info for normal
// operations, warning for rejections and fetch failures, critical for
// failed jobs) and metadata such as the job key, status and reason.
//
// # Usage
//
//	eng, err := engine.New(backend, sub,
//	    engine.WithExtension(audithook.New(audithook.NewLogRecorder(logger))),
//	)
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionTransitionRejected,
//	    ),
//	)
package audithook
