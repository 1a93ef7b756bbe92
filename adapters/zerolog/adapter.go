// Package zerologadapter bridges authclient's Logger interface to rs/zerolog
// so embedding applications get structured session logs alongside the rest of
// their output.
package zerologadapter

import (
	"fmt"

	authclient "github.com/goliatone/go-authclient"
	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to authclient.Logger. Key/value argument
// pairs become structured fields.
type Logger struct {
	log zerolog.Logger
}

var _ authclient.Logger = Logger{}

// New wraps a zerolog.Logger.
func New(log zerolog.Logger) Logger {
	return Logger{log: log}
}

// Debug implements authclient.Logger.
func (l Logger) Debug(msg string, args ...any) { emit(l.log.Debug(), msg, args) }

// Info implements authclient.Logger.
func (l Logger) Info(msg string, args ...any) { emit(l.log.Info(), msg, args) }

// Warn implements authclient.Logger.
func (l Logger) Warn(msg string, args ...any) { emit(l.log.Warn(), msg, args) }

// Error implements authclient.Logger.
func (l Logger) Error(msg string, args ...any) { emit(l.log.Error(), msg, args) }

func emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}
