package ratebucket

import (
	"log"
	"os"
)

// logger is the library's internal diagnostic sink. It mirrors the shape
// of the teacher's pkg/middleware/logging.go request logger: a thin
// wrapper over the standard library's *log.Logger, one line per event,
// silent by default. The core algorithm never logs (it is pure); only
// LocalBucket logs (CAS retries, reconfiguration, interrupted Consume), and
// only when a caller opts in via LocalBucket.WithLogger. The grid package
// does not log.
type logger struct {
	std     *log.Logger
	enabled bool
}

// nopLogger returns a logger that discards everything, the zero-overhead
// default.
func nopLogger() *logger {
	return &logger{enabled: false}
}

// NewLogger returns a logger writing structured lines to os.Stderr with
// the given prefix, for callers that want CAS-contention/reconfiguration/
// interrupted-consume diagnostics (off by default to keep the hot path
// silent).
func NewLogger(prefix string) *logger {
	return &logger{
		std:     log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds),
		enabled: true,
	}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.enabled {
		return
	}
	l.std.Printf("level=debug "+format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	if l == nil || !l.enabled {
		return
	}
	l.std.Printf("level=warn "+format, args...)
}
