package reqlog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// DefaultBatchSize is the number of records buffered before a batch is delivered. It matches the maximum number of
// events CloudWatch Logs accepts in a single PutLogEvents call.
const DefaultBatchSize = 10000

// Handler receives records after they went through the processor pipeline.
type Handler interface {
	Handle(ctx context.Context, rec Record) error
	Flush(ctx context.Context) error
}

// State describes what a [BatchHandler] is doing.
type State int32

const (
	StateIdle State = iota
	StateBuffering
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// BatchHandler buffers records and delivers them to a sink in batches. Appending a record and the flush it may
// trigger happen under one lock, so concurrent callers never interleave records or observe a half-flushed buffer.
type BatchHandler struct {
	sink      Sink
	logGroup  string
	logStream string
	level     zapcore.LevelEnabler
	batchSize int
	bubble    bool
	logs      Logger

	state  atomic.Int32
	mu     sync.Mutex
	buf    []Record
	closed bool
}

// BatchOption configures a [BatchHandler].
type BatchOption func(*BatchHandler)

// WithBatchSize sets the number of records that triggers a delivery. Values below one are ignored.
func WithBatchSize(n int) BatchOption {
	return func(h *BatchHandler) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

// WithLevel sets the minimum severity. Records below it are dropped before they reach the buffer.
func WithLevel(l zapcore.LevelEnabler) BatchOption {
	return func(h *BatchHandler) { h.level = l }
}

// WithBubble controls whether delivery failures are returned to the caller (true, the default) or absorbed and
// reported to the handler's [Logger].
func WithBubble(bubble bool) BatchOption {
	return func(h *BatchHandler) { h.bubble = bubble }
}

// WithLogger sets the logger that absorbed delivery failures are reported to.
func WithLogger(l Logger) BatchOption {
	return func(h *BatchHandler) { h.logs = l }
}

// NewBatchHandler inits a handler delivering to the given log group and stream.
func NewBatchHandler(sink Sink, logGroup, logStream string, opts ...BatchOption) (*BatchHandler, error) {
	if sink == nil {
		return nil, errors.New("reqlog: batch handler requires a sink")
	}
	if logGroup == "" || logStream == "" {
		return nil, errors.Errorf("reqlog: log group and stream are required, got %q and %q", logGroup, logStream)
	}

	h := &BatchHandler{
		sink:      sink,
		logGroup:  logGroup,
		logStream: logStream,
		level:     zapcore.DebugLevel,
		batchSize: DefaultBatchSize,
		bubble:    true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logs == nil {
		h.logs = NewStdLogger(nil)
	}

	h.buf = make([]Record, 0, h.initialCap())

	return h, nil
}

// LogGroup returns the destination log group.
func (h *BatchHandler) LogGroup() string { return h.logGroup }

// LogStream returns the destination log stream.
func (h *BatchHandler) LogStream() string { return h.logStream }

// BatchSize returns the number of records that triggers a delivery.
func (h *BatchHandler) BatchSize() int { return h.batchSize }

// Enabled reports whether records of the given level are accepted.
func (h *BatchHandler) Enabled(l zapcore.Level) bool { return h.level.Enabled(l) }

// State returns the current state without waiting for an in-flight delivery.
func (h *BatchHandler) State() State { return State(h.state.Load()) }

// Len returns the number of buffered records.
func (h *BatchHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.buf)
}

// Handle appends the record to the buffer and delivers the buffer when it reached the batch size.
func (h *BatchHandler) Handle(ctx context.Context, rec Record) error {
	if !h.level.Enabled(rec.Level) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandlerClosed
	}

	h.buf = append(h.buf, rec)
	h.state.Store(int32(StateBuffering))

	if len(h.buf) < h.batchSize {
		return nil
	}

	return h.flushLocked(ctx)
}

// Flush delivers the buffered records regardless of how many there are.
func (h *BatchHandler) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.flushLocked(ctx)
}

// Close flushes the remaining records and rejects all records handed in afterwards.
func (h *BatchHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	return h.flushLocked(ctx)
}

func (h *BatchHandler) flushLocked(ctx context.Context) error {
	if len(h.buf) == 0 {
		h.state.Store(int32(StateIdle))
		return nil
	}

	// the batch is detached before delivery, a failed batch is never requeued.
	batch := h.buf
	h.buf = make([]Record, 0, h.initialCap())
	h.state.Store(int32(StateFlushing))
	defer h.state.Store(int32(StateIdle))

	// the batch holds records of many requests, the emitting request being cancelled must not abort it.
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	if err := h.sink.PutLogEvents(ctx, h.logGroup, h.logStream, batch); err != nil {
		derr := &DeliveryError{
			LogGroup:  h.logGroup,
			LogStream: h.logStream,
			Records:   len(batch),
			err:       err,
		}
		if h.bubble {
			return derr
		}

		h.logs.LogDeliveryFailure(derr)
	}

	return nil
}

func (h *BatchHandler) initialCap() int {
	return min(h.batchSize, 64)
}

var _ Handler = &BatchHandler{}
