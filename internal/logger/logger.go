package logger

import (
	"io"
	"log"
	"os"
)

// Logger wraps standard log with a debug flag. Errors and fatals are always
// written; Printf-level output only when debug is enabled.
type Logger struct {
	debug bool
	out   *log.Logger
	err   *log.Logger
}

// New creates a new logger writing to stderr.
func New(debug bool) *Logger {
	return NewWithWriter(debug, os.Stderr)
}

// NewWithWriter creates a logger writing to the given writer.
func NewWithWriter(debug bool, w io.Writer) *Logger {
	debugOut := io.Discard
	if debug {
		debugOut = w
	}
	return &Logger{
		debug: debug,
		out:   log.New(debugOut, "", log.LstdFlags),
		err:   log.New(w, "", log.LstdFlags),
	}
}

// WithPrefix returns a logger tagging every line with the given subsystem name.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		debug: l.debug,
		out:   log.New(l.out.Writer(), prefix+" ", log.LstdFlags),
		err:   log.New(l.err.Writer(), prefix+" ", log.LstdFlags),
	}
}

// Printf logs if debug is enabled
func (l *Logger) Printf(format string, v ...interface{}) {
	l.out.Printf(format, v...)
}

// Println logs if debug is enabled
func (l *Logger) Println(v ...interface{}) {
	l.out.Println(v...)
}

// Errorf always logs
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.err.Printf("error: "+format, v...)
}

// Fatalf always logs and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.err.Fatalf(format, v...)
}
