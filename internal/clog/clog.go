// Package clog provides global conditional logging for the simulator's
// components: a four-level verbosity set once from the CLI's --verbosity
// (or --quiet) flag, with
// each Logger exposing one conditional method per level instead of a single
// undifferentiated Printf, so a run can ask for just network traffic or just
// job lifecycle events without drowning in the other.
package clog

import (
	"fmt"
	"log"
)

// Level is a verbosity threshold. A message logs if its own level is <= the
// globally configured Level.
type Level int

const (
	// Quiet suppresses everything but unconditional Errorf output.
	Quiet Level = iota
	// Network logs only EDC protocol traffic (request/reply frames).
	Network
	// Information logs high-level simulation events (job submitted,
	// allocated, completed; machine pstate changes).
	Information
	// Debug logs everything, including kernel-level scheduling detail.
	Debug
)

var level = Quiet

// SetLevel sets the process-wide verbosity threshold.
func SetLevel(l Level) { level = l }

// Logger logs output in the manner of the standard logger, conditionally on
// the process-wide verbosity level.
type Logger struct {
	logger *log.Logger
}

// New creates a new conditional Logger with the given prefix.
func New(prefixFormat string, prefixArgs ...any) *Logger {
	return &Logger{
		logger: log.New(
			log.Default().Writer(),
			fmt.Sprintf(prefixFormat, prefixArgs...),
			log.Ldate|log.Ltime|log.Lmicroseconds|log.Lmsgprefix,
		),
	}
}

func (l *Logger) logAt(at Level, format string, a ...any) {
	if level < at {
		return
	}
	l.logger.Printf(format, a...)
}

// Networkf logs EDC protocol traffic, shown at verbosity >= Network.
func (l *Logger) Networkf(format string, a ...any) { l.logAt(Network, format, a...) }

// Infof logs high-level simulation events, shown at verbosity >= Information.
func (l *Logger) Infof(format string, a ...any) { l.logAt(Information, format, a...) }

// Debugf logs fine-grained scheduling detail, shown at verbosity >= Debug.
func (l *Logger) Debugf(format string, a ...any) { l.logAt(Debug, format, a...) }

// Errorf logs output unconditionally, in the manner of log.Printf.
func (l *Logger) Errorf(format string, a ...any) {
	l.logger.Printf(format, a...)
}
