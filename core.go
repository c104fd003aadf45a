package reqlog

import (
	"context"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ctxFieldKey = "reqlog.ctx"

// ContextField carries ctx along with a zap logger so that processors see the request the record was emitted
// for. Encoders skip the field, other cores never output it.
func ContextField(ctx context.Context) zap.Field {
	return zap.Field{Key: ctxFieldKey, Type: zapcore.SkipType, Interface: ctx}
}

// Core is a zapcore.Core that turns zap entries into records, runs them through the processor pipeline and hands
// them to a [Handler]. Tee it with a regular core to log both locally and remotely.
type Core struct {
	zapcore.LevelEnabler
	handler Handler
	proc    Processor
	ctx     context.Context
	fields  []zapcore.Field
}

// NewCore inits a core. The processors are applied in order to every record.
func NewCore(h Handler, enab zapcore.LevelEnabler, ps ...Processor) *Core {
	return &Core{
		LevelEnabler: enab,
		handler:      h,
		proc:         Chain(ps...),
		ctx:          context.Background(),
	}
}

// With implements zapcore.Core.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.ctx, clone.fields = splitContext(c.ctx, c.fields, fields)

	return &clone
}

// Check implements zapcore.Core.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core. Errors from the handler, such as a failed delivery, are returned so that the
// wrapping zap logger (or an outer core) gets to see them.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ctx, all := splitContext(c.ctx, c.fields, fields)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range all {
		f.AddTo(enc)
	}

	rec := Record{
		Time:    ent.Time,
		Level:   ent.Level,
		Channel: ent.LoggerName,
		Message: ent.Message,
		Context: enc.Fields,
	}

	return c.handler.Handle(ctx, c.proc(ctx, rec))
}

// Sync implements zapcore.Core by flushing the handler.
func (c *Core) Sync() error {
	return c.handler.Flush(context.Background())
}

// splitContext appends fields to a copy of base while lifting out any context field.
func splitContext(ctx context.Context, base, fields []zapcore.Field) (context.Context, []zapcore.Field) {
	out := slices.Clip(base)
	for _, f := range fields {
		if f.Type == zapcore.SkipType && f.Key == ctxFieldKey {
			if fctx, ok := f.Interface.(context.Context); ok && fctx != nil {
				ctx = fctx
			}
			continue
		}
		out = append(out, f)
	}

	return ctx, slices.Clip(out)
}

var _ zapcore.Core = &Core{}
