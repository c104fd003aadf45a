package reqlog

import (
	"context"
	"net/http"
)

// HandlerFunc mirrors http.HandlerFunc but returns an error, leaving error rendering to [ToStd].
type HandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// ServeHTTP implements http.Handler with the default error rendering and a standard library logger.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ToStd(f, NewStdLogger(nil)).ServeHTTP(w, r)
}

// ToStd converts h into a standard library http.Handler. Errors carrying a [Code] are rendered with that status,
// any other error is logged and rendered as a 500. Handlers must not write a body before returning an error.
func ToStd(h HandlerFunc, logs Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(r.Context(), w, r)
		if err == nil {
			return
		}

		code := CodeOf(err)
		if code == CodeUnknown {
			logs.LogUnhandledServeError(err)
			code = CodeInternalServerError
		}

		http.Error(w, http.StatusText(int(code)), int(code))
	})
}
