package cwlog_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/reqlog/cwlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestHTTPEnvironmentDetector(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr string
	}{
		{name: "plain body", status: http.StatusOK, body: "live\n", want: "live"},
		{name: "json body", status: http.StatusOK, body: `{"name":"test","site":"example"}`, want: "test"},
		{name: "json without name", status: http.StatusOK, body: `{"site":"example"}`, wantErr: "has no name"},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantErr: "failed to detect environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			transport := cwlog.NewHTTPTransport(noop.NewTracerProvider(), propagation.TraceContext{})
			d := cwlog.NewHTTPEnvironmentDetector(srv.URL, transport)

			got, err := d.Name(context.Background())
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPEnvironmentDetector_RoutesLogGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"name":"dev"}`)
	}))
	t.Cleanup(srv.Close)

	r := cwlog.NewLogGroupRouter("app",
		cwlog.WithDetector(cwlog.NewHTTPEnvironmentDetector(srv.URL, nil)),
		cwlog.WithRouterLookupEnv(lookupMap(map[string]string{"APP_ENV": "live"})),
	)

	assert.Equal(t, "/app/dev", r.Resolve(context.Background(), ""))
}
