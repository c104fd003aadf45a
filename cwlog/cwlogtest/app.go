// Package cwlogtest provides test helpers for cwlog applications.
//
// It constructs the identical DI graph as [cwlog.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	cwlogtest.SetBaseEnv(t, 18081)
//	sink := &reqlog.MemorySink{}
//	app := cwlogtest.New[TestEnv](t, routing, cwlog.WithSink(sink))
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package cwlogtest

import (
	"testing"

	"github.com/advdv/reqlog/cwlog"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing cwlog applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [cwlog.NewApp].
func New[E cwlog.Environment](t testing.TB, routing any, opts ...cwlog.Option) *App {
	return &App{App: fxtest.New(t, cwlog.FxOptions[E](routing, opts...)...)}
}
