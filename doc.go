// Package reqlog captures per-request metadata, enriches log records with request and session context and ships
// them in batches to a remote log sink.
//
// # Records and processors
//
// Every log statement becomes a [Record]: a message template, a context map with the values of its placeholders
// and an extra map for metadata added along the way. Before a record is buffered it passes an ordered list of
// [Processor] functions. Processors return a new record, they never change the one they received:
//
//	proc := reqlog.Chain(
//	    reqlog.SessionProcessor(),
//	    myTraceProcessor,
//	)
//
// # Batching
//
// [BatchHandler] owns the buffer. It drops records below its minimum level, appends the rest and delivers the
// buffer to its [Sink] once [DefaultBatchSize] records accumulated, or when [BatchHandler.Flush] or
// [BatchHandler.Close] is called. A failed delivery is returned as a [*DeliveryError]; the failed batch is not
// retried or requeued. Whatever wraps the handler decides whether to retry, degrade or crash.
//
//	h, err := reqlog.NewBatchHandler(sink, "/app/live", "web",
//	    reqlog.WithLevel(zapcore.InfoLevel),
//	)
//	defer h.Close(ctx)
//
// # Zap
//
// Applications log through zap. [NewCore] bridges zap entries into records, and the request context travels along
// as a [ContextField] so that processors can look at the request:
//
//	core := reqlog.NewCore(h, h, reqlog.SessionProcessor())
//	logger := zap.New(zapcore.NewTee(localCore, core))
//	logger.With(reqlog.ContextField(r.Context())).Info("hello")
//
// # Requests
//
// [LogRequests] emits one record per main request with the method, uri, client ip, user and headers. Requests
// dispatched internally while handling another request (see [SubRequest]) are not logged again.
//
// # Sensitive fields
//
// [FieldPolicy] keeps the ordered list of field machine names whose values the entity change logger masks. It is
// configuration only; masking is done by that logger. [MatchFields] backs the field picker.
package reqlog
