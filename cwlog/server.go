package cwlog

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/advdv/reqlog"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

// Mux routes application requests. Handlers return errors which are rendered by [reqlog.ToStd].
type Mux struct {
	*http.ServeMux
	logs reqlog.Logger
}

// NewMux creates a new Mux reporting unhandled errors to logs.
func NewMux(logs reqlog.Logger) *Mux {
	return &Mux{ServeMux: http.NewServeMux(), logs: logs}
}

// HandleFunc registers an error-returning handler for the pattern.
func (m *Mux) HandleFunc(pattern string, h reqlog.HandlerFunc) {
	m.ServeMux.Handle(pattern, reqlog.ToStd(h, m.logs))
}

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Mux        *Mux
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server with all middleware and routing configured. The health endpoint bypasses the
// request pipeline, so probes are neither traced nor logged.
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	env := params.Env.base()

	d := &requestDep{logger: params.Logger}

	app := reqlog.Wrap(params.Mux,
		withTracing(params.TracerProv, params.Propagator, env.ServiceName),
		withRequestDep(d),
		reqlog.CookieSessions(env.SessionCookie),
		HeaderAccounts(env.UserIDHeader, env.UserNameHeader),
		reqlog.LogRequests(Log, reqlog.TrustForwardedFor(env.TrustForwardedHeader)),
	)

	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}

	root := http.NewServeMux()
	root.HandleFunc(env.HealthPath, healthHandler)
	root.Handle("/", app)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", env.Port),
		Handler:           root,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server. The port is bound before start returns, so a
// taken port fails the start and requests can be made as soon as it succeeded.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var lcfg net.ListenConfig
			ln, err := lcfg.Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "failed to listen on %s", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
