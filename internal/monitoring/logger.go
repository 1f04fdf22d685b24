// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger used by the volume codec and
// the schema migrator. It defaults to log.Printf; SetLogger replaces it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewStreamLogger returns a timestamped logger writing to w with the given
// prefix, or nil when w is nil so callers can treat the stream as disabled.
func NewStreamLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
