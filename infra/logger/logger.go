package logger

import corelogger "github.com/kilianp07/cheaphours/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component using the output configured
// by Configure. Before Configure runs, APP_ENV=dev selects console output.
func New(component string) Logger {
	return NewZerologLogger(component)
}
