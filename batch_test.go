package reqlog_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/advdv/reqlog"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func rec(level zapcore.Level, msg string) reqlog.Record {
	return reqlog.Record{Level: level, Message: msg}
}

func newBatchHandler(t *testing.T, sink reqlog.Sink, opts ...reqlog.BatchOption) *reqlog.BatchHandler {
	t.Helper()
	h, err := reqlog.NewBatchHandler(sink, "/app/test", "web", opts...)
	require.NoError(t, err)
	return h
}

func TestBatchHandler_Defaults(t *testing.T) {
	h := newBatchHandler(t, &reqlog.MemorySink{})
	assert.Equal(t, reqlog.DefaultBatchSize, h.BatchSize())
	assert.Equal(t, 10000, h.BatchSize())
	assert.Equal(t, "/app/test", h.LogGroup())
	assert.Equal(t, "web", h.LogStream())
	assert.True(t, h.Enabled(zapcore.DebugLevel))
	assert.Equal(t, reqlog.StateIdle, h.State())
}

func TestNewBatchHandler_Validation(t *testing.T) {
	_, err := reqlog.NewBatchHandler(nil, "/app/test", "web")
	require.Error(t, err)

	_, err = reqlog.NewBatchHandler(&reqlog.MemorySink{}, "", "web")
	require.ErrorContains(t, err, "log group and stream are required")

	_, err = reqlog.NewBatchHandler(&reqlog.MemorySink{}, "/app/test", "")
	require.ErrorContains(t, err, "log group and stream are required")
}

func TestBatchHandler_FlushesAtBatchSize(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	h := newBatchHandler(t, sink, reqlog.WithBatchSize(5))

	for i := range 4 {
		require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, strconv.Itoa(i))))
	}
	require.Empty(t, sink.Deliveries())
	require.Equal(t, 4, h.Len())
	require.Equal(t, reqlog.StateBuffering, h.State())

	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "4")))

	deliveries := sink.Deliveries()
	require.Len(t, deliveries, 1)
	require.Equal(t, "/app/test", deliveries[0].LogGroup)
	require.Equal(t, "web", deliveries[0].LogStream)
	require.Len(t, deliveries[0].Records, 5)
	for i, r := range deliveries[0].Records {
		require.Equal(t, strconv.Itoa(i), r.Message)
	}

	require.Equal(t, 0, h.Len())
	require.Equal(t, reqlog.StateIdle, h.State())
}

func TestBatchHandler_DropsBelowLevel(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	h := newBatchHandler(t, sink, reqlog.WithBatchSize(2), reqlog.WithLevel(zapcore.WarnLevel))

	require.NoError(t, h.Handle(ctx, rec(zapcore.DebugLevel, "debug")))
	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "info")))
	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "info")))
	require.Empty(t, sink.Deliveries())
	require.Equal(t, 0, h.Len())

	require.NoError(t, h.Handle(ctx, rec(zapcore.WarnLevel, "warn")))
	require.NoError(t, h.Handle(ctx, rec(zapcore.ErrorLevel, "error")))

	recs := sink.Records()
	require.Len(t, recs, 2)
	require.Equal(t, "warn", recs[0].Message)
	require.Equal(t, "error", recs[1].Message)
}

func TestBatchHandler_FlushPartial(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	h := newBatchHandler(t, sink)

	require.NoError(t, h.Flush(ctx))
	require.Empty(t, sink.Deliveries(), "flushing an empty buffer delivers nothing")

	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "a")))
	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "b")))
	require.NoError(t, h.Flush(ctx))

	require.Len(t, sink.Deliveries(), 1)
	require.Len(t, sink.Records(), 2)
	require.Equal(t, 0, h.Len())
}

func TestBatchHandler_Close(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	h := newBatchHandler(t, sink)

	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "a")))
	require.NoError(t, h.Close(ctx))
	require.Len(t, sink.Records(), 1)

	require.ErrorIs(t, h.Handle(ctx, rec(zapcore.InfoLevel, "b")), reqlog.ErrHandlerClosed)
	require.NoError(t, h.Close(ctx))
	require.Len(t, sink.Records(), 1)
}

func TestBatchHandler_DeliveryFailureBubbles(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	sink.Fail(errors.New("ResourceNotFoundException: log group does not exist"))

	h := newBatchHandler(t, sink, reqlog.WithBatchSize(10000))
	for i := range 9999 {
		require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, strconv.Itoa(i))))
	}

	err := h.Handle(ctx, rec(zapcore.InfoLevel, "last"))
	require.Error(t, err)
	require.True(t, reqlog.IsDeliveryError(err))
	require.ErrorContains(t, err, "ResourceNotFoundException")

	var derr *reqlog.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, 10000, derr.Records)
	require.Equal(t, "/app/test", derr.LogGroup)
	require.Equal(t, "web", derr.LogStream)

	// the failed batch is gone, it is not retried on the next flush
	require.Equal(t, 0, h.Len())
	sink.Fail(nil)
	require.NoError(t, h.Flush(ctx))
	require.Empty(t, sink.Deliveries())
}

func TestBatchHandler_DeliveryFailureAbsorbedWithoutBubble(t *testing.T) {
	ctx := context.Background()
	logs := reqlog.NewTestLogger(t)
	sink := &reqlog.MemorySink{}
	sink.Fail(errors.New("unreachable"))

	h := newBatchHandler(t, sink, reqlog.WithBubble(false), reqlog.WithLogger(logs), reqlog.WithBatchSize(1))
	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "a")))
	require.Equal(t, int64(1), logs.NumLogDeliveryFailure)
	require.Equal(t, 0, h.Len())
}

func TestBatchHandler_DeliversWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []reqlog.Record
	sink := reqlog.SinkFunc(func(ctx context.Context, _, _ string, recs []reqlog.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		got = append(got, recs...)
		return nil
	})

	h := newBatchHandler(t, sink, reqlog.WithBatchSize(1))
	require.NoError(t, h.Handle(ctx, rec(zapcore.InfoLevel, "a")))
	require.Len(t, got, 1)
}

func TestBatchHandler_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	sink := &reqlog.MemorySink{}
	h := newBatchHandler(t, sink, reqlog.WithBatchSize(100))

	const writers, perWriter = 50, 200

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				r := reqlog.Record{
					Level:   zapcore.InfoLevel,
					Message: "msg",
					Context: map[string]any{"writer": w, "seq": i},
				}
				assert.NoError(t, h.Handle(ctx, r))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, h.Flush(ctx))

	deliveries := sink.Deliveries()
	require.Len(t, deliveries, writers*perWriter/100)
	for _, d := range deliveries {
		require.Len(t, d.Records, 100)
	}

	// records of a single writer keep their relative order
	last := map[int]int{}
	for _, r := range sink.Records() {
		w, seq := r.Context["writer"].(int), r.Context["seq"].(int)
		if prev, ok := last[w]; ok {
			require.Greater(t, seq, prev)
		}
		last[w] = seq
	}
	require.Len(t, last, writers)
}
