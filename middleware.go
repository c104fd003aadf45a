package reqlog

import "net/http"

// ctxKey scopes the context values of this package.
type ctxKey int

const (
	ctxKeySession ctxKey = iota
	ctxKeyAccount
	ctxKeyMainRequest
)

// Middleware for cross-cutting concerns of the request pipeline.
type Middleware func(http.Handler) http.Handler

// Wrap takes the inner handler h and wraps it with middleware. The order is that of the Gorilla and Chi router. That
// is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided last
// will be the "inner most" wrapping (closest to the handler).
func Wrap(h http.Handler, m ...Middleware) http.Handler {
	if len(m) < 1 {
		return h
	}

	wrapped := h
	for i := len(m) - 1; i >= 0; i-- {
		wrapped = m[i](wrapped)
	}

	return wrapped
}
