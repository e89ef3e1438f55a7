// Package logging wires process-wide structured logging the same way
// the teacher's internal/shared/utils/log.go does: zerolog, RFC3339
// timestamps, and fields attached per call rather than interpolated
// into the message string.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global zerolog logger. env "production" gets the default
// JSON writer (cheap to ship to a log aggregator); anything else gets a
// human-readable console writer on stderr, matching the teacher's
// development setup.
func Init(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "production" {
		log.Logger = log.Output(os.Stderr)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// Info logs msg at info level with fields attached as structured keys —
// callers pass request-scoped context like tenant/session_id/stage here
// instead of formatting it into msg.
func Info(msg string, fields map[string]interface{}) {
	event := log.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Warn logs msg at warn level with structured fields.
func Warn(msg string, fields map[string]interface{}) {
	event := log.Warn()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Error logs msg at error level with err attached plus any structured
// fields.
func Error(msg string, err error, fields map[string]interface{}) {
	event := log.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
