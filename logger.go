package reqlog

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states. It is used for failures that cannot be
// reported through the pipeline itself.
type Logger interface {
	LogUnhandledServeError(err error)
	LogDeliveryFailure(err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("reqlog: unhandled server error: %s", err)
}

func (l stdLogger) LogDeliveryFailure(err error) {
	l.Logger.Printf("reqlog: log delivery failed: %s", err)
}

// NewStdLogger reports through a standard library logger, or [log.Default] when l is nil.
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogDeliveryFailure     int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("reqlog: unhandled server error: %s", err)
}

func (l *TestLogger) LogDeliveryFailure(err error) {
	atomic.AddInt64(&l.NumLogDeliveryFailure, 1)
	l.tb.Logf("reqlog: log delivery failed: %s", err)
}

var _ Logger = &TestLogger{}
