package cwlog_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/reqlog"
	"github.com/advdv/reqlog/cwlog"
	"github.com/advdv/reqlog/cwlog/cwlogtest"
	"go.uber.org/zap"
)

// TestEnv is a test environment with app-specific fields beyond BaseEnvironment.
type TestEnv struct {
	cwlog.BaseEnvironment
	SiteName string `env:"SITE_NAME,required"`
}

// Handlers renders nodes and dispatches the teaser of a node as a sub-request.
type Handlers struct {
	rt  *cwlog.Runtime[TestEnv]
	srv *http.Server
}

func NewHandlers(rt *cwlog.Runtime[TestEnv], srv *http.Server) *Handlers {
	return &Handlers{rt: rt, srv: srv}
}

func (h *Handlers) ShowNode(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	cwlog.Log(ctx).Info("viewing node @id", zap.String("@id", id))

	sub, err := reqlog.SubRequest(r, http.MethodGet, "/nodes/"+id+"/teaser", nil)
	if err != nil {
		return err
	}
	teaser := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(teaser, sub)

	_, err = io.WriteString(w, h.rt.Env().SiteName+": "+teaser.Body.String())
	return err
}

func (h *Handlers) ShowTeaser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cwlog.Log(ctx).Debug("rendering teaser @id", zap.String("@id", r.PathValue("id")))
	_, err := io.WriteString(w, "teaser "+r.PathValue("id"))
	return err
}

func routing(m *cwlog.Mux, api *cwlog.SettingsAPI, h *Handlers) {
	api.Register(m)
	m.HandleFunc("GET /nodes/{id}", h.ShowNode)
	m.HandleFunc("GET /nodes/{id}/teaser", h.ShowTeaser)
}

// setTestEnv calls SetBaseEnv and sets the TestEnv-specific variables.
func setTestEnv(t *testing.T, port int) *cwlogtest.Env {
	t.Helper()
	env := cwlogtest.SetBaseEnv(t, port)
	t.Setenv("SITE_NAME", "example")
	return env
}

// doGet performs an HTTP GET with the given context and headers.
func doGet(ctx context.Context, client *http.Client, url string, hdr ...string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	return client.Do(req)
}

// requestRecords returns the records of the request channel.
func requestRecords(sink *reqlog.MemorySink) (recs []reqlog.Record) {
	for _, rec := range sink.Records() {
		if rec.Channel == reqlog.RequestChannel {
			recs = append(recs, rec)
		}
	}
	return recs
}
