package reqlog

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RequestMessage is the template of the record emitted for every main request.
const RequestMessage = "@method @uri | User: @user_id (@username) | IP: @ip | Referer: @referer | UA: @user_agent"

// RequestChannel is the logger name of request records.
const RequestChannel = "request"

// Account identifies the user a request is made for.
type Account interface {
	ID() string
	AccountName() string
}

type anonymous struct{}

func (anonymous) ID() string          { return "0" }
func (anonymous) AccountName() string { return "" }

// Anonymous is the account of requests without an authenticated user.
var Anonymous Account = anonymous{}

// StaticAccount is an [Account] with fixed values.
type StaticAccount struct {
	UserID   string
	UserName string
}

func (a StaticAccount) ID() string          { return a.UserID }
func (a StaticAccount) AccountName() string { return a.UserName }

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, a Account) context.Context {
	return context.WithValue(ctx, ctxKeyAccount, a)
}

// AccountFromContext returns the authenticated account, or [Anonymous].
func AccountFromContext(ctx context.Context) Account {
	if a, ok := ctx.Value(ctxKeyAccount).(Account); ok && a != nil {
		return a
	}
	return Anonymous
}

// IsSubRequest reports whether ctx belongs to a request that is dispatched while handling another (main) request.
func IsSubRequest(ctx context.Context) bool {
	main, _ := ctx.Value(ctxKeyMainRequest).(bool)
	return main
}

// SubRequest creates a request for internal dispatch while handling parent. It shares the parent's context, so
// request logging recognizes it as a sub-request.
func SubRequest(parent *http.Request, method, target string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(parent.Context(), method, target, body)
}

// ClientIP returns the address of the client. When trustForwarded is set the left-most X-Forwarded-For entry wins
// over the connection's remote address.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type requestLogger struct {
	logs           func(ctx context.Context) *zap.Logger
	trustForwarded bool
}

// RequestOption configures [LogRequests].
type RequestOption func(*requestLogger)

// TrustForwardedFor makes the logged client ip honor the X-Forwarded-For header.
func TrustForwardedFor(trust bool) RequestOption {
	return func(l *requestLogger) { l.trustForwarded = trust }
}

// LogRequests returns middleware that emits exactly one informational record per main request. Nested
// sub-requests are passed through without logging. Install it after the middleware that resolves the account, so
// the record carries the authenticated user.
func LogRequests(logs func(ctx context.Context) *zap.Logger, opts ...RequestOption) Middleware {
	l := &requestLogger{logs: logs}
	for _, opt := range opts {
		opt(l)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if IsSubRequest(ctx) {
				next.ServeHTTP(w, r)
				return
			}

			r = r.WithContext(context.WithValue(ctx, ctxKeyMainRequest, true))
			l.log(r)

			next.ServeHTTP(w, r)
		})
	}
}

func (l *requestLogger) log(r *http.Request) {
	ctx := r.Context()
	acct := AccountFromContext(ctx)

	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}

	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = "none"
	}

	l.logs(ctx).Named(RequestChannel).Info(RequestMessage,
		zap.String("@method", r.Method),
		zap.String("@uri", uri),
		zap.String("@ip", ClientIP(r, l.trustForwarded)),
		zap.String("@user_id", acct.ID()),
		zap.String("@username", acct.AccountName()),
		zap.String("@user_agent", r.Header.Get("User-Agent")),
		zap.String("@referer", referer),
	)
}
