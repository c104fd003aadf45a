package cwlog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/advdv/reqlog"
	"github.com/aws-observability/aws-otel-go/exporters/xrayudp"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/detectors/aws/lambda"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const tracingInitTimeout = 5 * time.Second

// Exporters accepted by REQLOG_OTEL_EXPORTER.
const (
	ExporterStdout  = "stdout"
	ExporterXrayUDP = "xrayudp"
	ExporterNone    = "none"
)

// NewTracerProvider creates the OpenTelemetry TracerProvider. Shutdown is handled via fx.Lifecycle.
func NewTracerProvider(lc fx.Lifecycle, env Environment) (trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tracingInitTimeout)
	defer cancel()

	exporterType := env.base().OtelExporter

	opts := []sdktrace.TracerProviderOption{}
	if exporterType != ExporterNone {
		exporter, err := newExporter(exporterType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	}

	res, err := newResource(ctx, exporterType, env.base().ServiceName, env.base().LogGroup)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sdktrace.WithResource(res))

	if exporterType == ExporterXrayUDP {
		opts = append(opts, sdktrace.WithIDGenerator(xray.NewIDGenerator()))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// NewPropagator uses the X-Ray propagator when exporting to X-Ray, W3C TraceContext and Baggage otherwise.
func NewPropagator(env Environment) propagation.TextMapPropagator {
	if env.base().OtelExporter == ExporterXrayUDP {
		return xray.Propagator{}
	}
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newExporter(exporterType string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case ExporterStdout, "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterXrayUDP:
		return xrayudp.NewSpanExporter(context.Background())
	default:
		return nil, fmt.Errorf("unsupported REQLOG_OTEL_EXPORTER: %q (supported: stdout, xrayudp, none)", exporterType)
	}
}

// newResource describes the service. On Lambda the detected resource is extended with the remote log group so
// X-Ray can correlate traces with the shipped records.
func newResource(ctx context.Context, exporterType, serviceName, logGroup string) (*resource.Resource, error) {
	if exporterType != ExporterXrayUDP {
		return resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		), nil
	}

	base, err := lambda.NewResourceDetector().Detect(ctx)
	if err != nil {
		return nil, err
	}
	if logGroup == "" {
		return base, nil
	}

	extra, err := resource.New(ctx,
		resource.WithAttributes(attribute.StringSlice("aws.log.group.names", []string{logGroup})),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(base, extra)
}

// withTracing wraps the handler with otelhttp. Requests to excludePaths are not traced.
func withTracing(tp trace.TracerProvider, prop propagation.TextMapPropagator, serviceName string, excludePaths ...string) reqlog.Middleware {
	excludeSet := make(map[string]struct{}, len(excludePaths))
	for _, p := range excludePaths {
		excludeSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(prop),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				_, excluded := excludeSet[r.URL.Path]
				return !excluded
			}),
		)
	}
}

// Trace correlation keys of local log fields and remote record metadata.
const (
	traceIDKey = "trace_id"
	spanIDKey  = "span_id"
)

// TraceProcessor adds trace_id and span_id of the active span to the record's extra map. Ids that [Log] attached
// as fields are lifted out of the context map, so remote records carry them once.
func TraceProcessor() reqlog.Processor {
	return func(ctx context.Context, rec reqlog.Record) reqlog.Record {
		sc := trace.SpanContextFromContext(ctx)
		if !sc.IsValid() {
			return rec
		}

		rec.Context = lo.OmitByKeys(rec.Context, []string{traceIDKey, spanIDKey})

		return rec.
			WithExtra(traceIDKey, sc.TraceID().String()).
			WithExtra(spanIDKey, sc.SpanID().String())
	}
}
