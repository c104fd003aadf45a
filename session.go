package reqlog

import (
	"context"
	"net/http"
)

// Session is the part of a user session that logging needs. Implementations must answer Started without starting
// the session.
type Session interface {
	ID() string
	Started() bool
}

// WithSession returns a context carrying the session of the current request.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext returns the session of the current request, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(ctxKeySession).(Session)
	return s, ok && s != nil
}

// SessionProcessor attaches the id of the active, started session to the record's extra map as "session_id".
// Records logged outside of a request, or for a request without a started session, pass through unchanged.
func SessionProcessor() Processor {
	return func(ctx context.Context, rec Record) Record {
		s, ok := SessionFromContext(ctx)
		if !ok || !s.Started() {
			return rec
		}

		id := s.ID()
		if id == "" {
			return rec
		}

		return rec.WithExtra("session_id", id)
	}
}

type cookieSession struct{ id string }

func (s cookieSession) ID() string    { return s.id }
func (s cookieSession) Started() bool { return s.id != "" }

// CookieSessions returns middleware that exposes the session named by the given cookie to the request context. A
// session only counts as started when the client sent the cookie; the middleware never sets one.
func CookieSessions(cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), cookieSession{id: c.Value})))
		})
	}
}
