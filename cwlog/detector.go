package cwlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport creates an HTTP RoundTripper instrumented with OpenTelemetry tracing.
// The TracerProvider and Propagator are explicitly injected to avoid global state.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
	)
}

// HTTPEnvironmentDetector asks an HTTP endpoint for the environment name. The endpoint may answer with the bare
// name or with a JSON object that has a "name" member.
type HTTPEnvironmentDetector struct {
	url       string
	transport http.RoundTripper
}

// NewHTTPEnvironmentDetector inits a detector for url. A nil transport uses http.DefaultTransport.
func NewHTTPEnvironmentDetector(url string, t http.RoundTripper) *HTTPEnvironmentDetector {
	if t == nil {
		t = http.DefaultTransport
	}
	return &HTTPEnvironmentDetector{url: url, transport: t}
}

// Name implements [EnvironmentDetector].
func (d *HTTPEnvironmentDetector) Name(ctx context.Context) (string, error) {
	var body string
	if err := requests.
		URL(d.url).
		Transport(d.transport).
		ToString(&body).
		Fetch(ctx); err != nil {
		return "", errors.Wrapf(err, "failed to detect environment from %q", d.url)
	}

	body = strings.TrimSpace(body)
	if gjson.Valid(body) {
		name := gjson.Get(body, "name")
		if !name.Exists() {
			return "", errors.Errorf("environment response from %q has no name", d.url)
		}
		return name.String(), nil
	}

	return body, nil
}

var _ EnvironmentDetector = &HTTPEnvironmentDetector{}
