// Package flowlog centralizes the structured logging the scheduler and
// workers emit on recovered panics and lifecycle events, preserving a
// "log and swallow, never propagate" discipline for task-level failures.
package flowlog

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-wide logger used by the scheduler and workers.
// Replace it to redirect output; flow.WithLogger does not affect it, it
// only sets the logger a Scheduler uses for its own start message.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().
	Timestamp().
	Logger()

// Default returns the package logger, used as the Scheduler's default
// when no WithLogger option is supplied.
func Default() zerolog.Logger {
	return Logger
}

// TaskPanic logs a recovered panic from user work or a notify callback.
// The joinCount bookkeeping happens regardless, in the caller — this is a
// side-effect only, never surfaced as an error return.
func TaskPanic(node, kind string, r any, stack []byte) {
	Logger.Error().
		Str("node", node).
		Str("kind", kind).
		Interface("panic", r).
		Str("stack", string(stack)).
		Msg("flow: task panicked, join count still applied")
}
