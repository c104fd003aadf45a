package cwlog

import (
	"context"
	"net/http"

	"github.com/advdv/reqlog"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey is the key type for context values.
type ctxKey int

const (
	ctxKeyRequestDep ctxKey = iota
)

// requestDep holds request-scoped dependencies available via context.
// App-scoped dependencies are accessed via Runtime instead.
type requestDep struct {
	logger *zap.Logger
}

// withRequestDep injects dependencies into the request context.
func withRequestDep(d *requestDep) reqlog.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKeyRequestDep, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestDepFromContext(ctx context.Context) *requestDep {
	d, ok := ctx.Value(ctxKeyRequestDep).(*requestDep)
	if !ok {
		panic("cwlog: requestDep not found in context; is the middleware configured?")
	}
	return d
}

// Log returns the logger of the request. Records logged through it carry the request context to the remote
// processors and are trace-correlated.
func Log(ctx context.Context) *zap.Logger {
	d := requestDepFromContext(ctx)
	return d.logger.With(append([]zap.Field{reqlog.ContextField(ctx)}, traceFields(ctx)...)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String(traceIDKey, sc.TraceID().String()),
		zap.String(spanIDKey, sc.SpanID().String()),
	}
}

// HeaderAccounts returns middleware that reads the authenticated account from request headers set by an upstream
// authenticating proxy. Requests without the id header stay anonymous. An empty idHeader disables the middleware.
func HeaderAccounts(idHeader, nameHeader string) reqlog.Middleware {
	return func(next http.Handler) http.Handler {
		if idHeader == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(idHeader)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			var name string
			if nameHeader != "" {
				name = r.Header.Get(nameHeader)
			}

			acct := reqlog.StaticAccount{UserID: id, UserName: name}
			next.ServeHTTP(w, r.WithContext(reqlog.WithAccount(r.Context(), acct)))
		})
	}
}
