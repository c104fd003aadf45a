package cwlogtest

import (
	"net/http"
	"net/http/httptest"

	"github.com/advdv/reqlog"
)

// CallHandler invokes a [reqlog.HandlerFunc] and returns the recorded response. Errors are rendered the way
// [cwlog.Mux] renders them.
func CallHandler(handler reqlog.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	reqlog.ToStd(handler, reqlog.NewStdLogger(nil)).ServeHTTP(rec, req)

	return rec
}
