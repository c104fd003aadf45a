package cwlog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/advdv/reqlog"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const alarmTimeout = 5 * time.Second

// NewLocalLogger creates the process-local zap logger. Uses JSON encoding suitable for CloudWatch.
// REQLOG_LOCAL_LOG_LEVEL controls the level (debug, info, warn, error).
func NewLocalLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.base().LocalLogLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewLogger tees the local logger with a core that ships records through h. The remote side runs the processors
// on every record. When a delivery fails the remote side is switched off for the rest of the process, the failure
// is logged locally and the alarm is raised; the log call itself never fails.
func NewLogger(local *zap.Logger, h *reqlog.BatchHandler, alarm Alarm, ps ...reqlog.Processor) *zap.Logger {
	remote := &fallbackCore{
		Core: reqlog.NewCore(h, h, ps...),
		state: &fallbackState{
			local: local.Named("reqlog"),
			alarm: alarm,
		},
	}

	return local.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, remote)
	}))
}

type fallbackState struct {
	degraded atomic.Bool
	local    *zap.Logger
	alarm    Alarm
}

// fallbackCore wraps the remote core and degrades to local-only logging on the first failed delivery.
type fallbackCore struct {
	zapcore.Core
	state *fallbackState
}

// Degraded reports whether the remote side was switched off.
func (c *fallbackCore) Degraded() bool { return c.state.degraded.Load() }

func (c *fallbackCore) With(fields []zapcore.Field) zapcore.Core {
	return &fallbackCore{Core: c.Core.With(fields), state: c.state}
}

func (c *fallbackCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.state.degraded.Load() || !c.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c *fallbackCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if c.state.degraded.Load() {
		return nil
	}

	c.state.fail(c.Core.Write(ent, fields))
	return nil
}

func (c *fallbackCore) Sync() error {
	if c.state.degraded.Load() {
		return nil
	}

	c.state.fail(c.Core.Sync())
	return nil
}

func (s *fallbackState) fail(err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, reqlog.ErrHandlerClosed):
		s.local.Debug("record dropped after remote logging was closed")
		return
	}

	if !s.degraded.CompareAndSwap(false, true) {
		return
	}

	s.local.Error("remote logging failed, continuing with local logging only", zap.Error(err))

	if s.alarm == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), alarmTimeout)
	defer cancel()

	if aerr := s.alarm.Raise(ctx, err); aerr != nil {
		s.local.Error("failed to raise delivery alarm", zap.Error(aerr))
	}
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogDeliveryFailure(err error) {
	l.Logger.Error("log delivery failed", zap.Error(err))
}

// NewReqlogLogger reports through l.
func NewReqlogLogger(l *zap.Logger) reqlog.Logger {
	return zapLogger{l.Named("reqlog").Named("cwlog")}
}
