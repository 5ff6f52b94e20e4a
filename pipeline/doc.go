// Package pipeline drives face redaction over a still image or a video.
//
// A Pipeline holds the collaborators of a run: detector factory, cascade
// fallback, video backend and audio muxer. Start launches one worker
// goroutine per run and returns a *Run.
//
// # Notifications
//
// Run.Events delivers Progress, Preview, Completed and Error events in order
// and is closed when the run ends. Progress values never decrease. In video
// runs the single Preview event precedes the first Progress event. Completed
// and Error are always the last event; a cancelled run ends without either.
// Callers must keep draining Events until it is closed.
//
// # Cancellation
//
// Run.Cancel, or cancelling the context passed to Start, stops a video run
// at the next frame boundary. The temporary video is deleted and no output
// is produced. Audio reattachment, once started, always runs to completion.
package pipeline
