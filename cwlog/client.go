package cwlog

import (
	"context"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"go.uber.org/zap/zapcore"
)

// DefaultRegion is the region of the sink client unless overridden.
const DefaultRegion = "us-west-2"

// DefaultLogStream is the log stream records are written to unless overridden.
const DefaultLogStream = "drupal"

// clientOptions holds the explicit arguments of a client.
type clientOptions struct {
	accessKeyID     string
	secretAccessKey string
	region          string
}

// ClientOption configures a sink client.
type ClientOption func(*clientOptions)

// WithCredentials supplies credentials explicitly. Empty values are resolved through the [CredentialResolver].
func WithCredentials(accessKeyID, secretAccessKey string) ClientOption {
	return func(o *clientOptions) {
		o.accessKeyID, o.secretAccessKey = accessKeyID, secretAccessKey
	}
}

// ForRegion overrides the region of the client. An empty region keeps the default.
func ForRegion(region string) ClientOption {
	return func(o *clientOptions) {
		if region != "" {
			o.region = region
		}
	}
}

// handlerOptions holds the arguments of a handler.
type handlerOptions struct {
	level     zapcore.Level
	logGroup  string
	logStream string
	client    []ClientOption
	sink      reqlog.Sink
	logs      reqlog.Logger
}

// HandlerOption configures a handler created by [ClientFactory.CreateHandler].
type HandlerOption func(*handlerOptions)

// HandlerLevel sets the minimum level of records sent to the sink. Defaults to debug.
func HandlerLevel(l zapcore.Level) HandlerOption {
	return func(o *handlerOptions) { o.level = l }
}

// HandlerLogGroup overrides the log group resolved by the [LogGroupRouter].
func HandlerLogGroup(group string) HandlerOption {
	return func(o *handlerOptions) { o.logGroup = group }
}

// HandlerLogStream overrides [DefaultLogStream].
func HandlerLogStream(stream string) HandlerOption {
	return func(o *handlerOptions) {
		if stream != "" {
			o.logStream = stream
		}
	}
}

// HandlerClient passes options to the sink client of the handler.
func HandlerClient(opts ...ClientOption) HandlerOption {
	return func(o *handlerOptions) { o.client = append(o.client, opts...) }
}

// HandlerSink replaces the CloudWatch sink, e.g. with a [reqlog.MemorySink] in tests.
func HandlerSink(s reqlog.Sink) HandlerOption {
	return func(o *handlerOptions) { o.sink = s }
}

// HandlerLogger sets the logger of the handler.
func HandlerLogger(l reqlog.Logger) HandlerOption {
	return func(o *handlerOptions) { o.logs = l }
}

// ClientFactory builds CloudWatch Logs clients and batching handlers on top of them.
type ClientFactory struct {
	base   aws.Config
	creds  *CredentialResolver
	router *LogGroupRouter
}

// NewClientFactory inits a factory. Clients inherit everything from base except region and, when resolved,
// credentials.
func NewClientFactory(base aws.Config, creds *CredentialResolver, router *LogGroupRouter) *ClientFactory {
	return &ClientFactory{base: base, creds: creds, router: router}
}

// Config returns the aws.Config a client would be created with. It performs no network I/O.
func (f *ClientFactory) Config(ctx context.Context, opts ...ClientOption) aws.Config {
	o := clientOptions{region: DefaultRegion}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := f.base.Copy()
	cfg.Region = o.region

	if c, ok := f.creds.Credentials(ctx, o.accessKeyID, o.secretAccessKey); ok {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""))
	}

	return cfg
}

// CreateClient builds a CloudWatch Logs client. Explicit credentials are used only when both the key and the
// secret resolve; otherwise the client relies on the ambient credential chain. Errors surface on first use.
func (f *ClientFactory) CreateClient(ctx context.Context, opts ...ClientOption) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(f.Config(ctx, opts...))
}

// CreateHandler builds a batching handler writing to an existing log group and stream. The batch size is fixed at
// [reqlog.DefaultBatchSize] and delivery failures bubble up to the caller.
func (f *ClientFactory) CreateHandler(ctx context.Context, opts ...HandlerOption) (*reqlog.BatchHandler, error) {
	o := handlerOptions{level: zapcore.DebugLevel, logStream: DefaultLogStream}
	for _, opt := range opts {
		opt(&o)
	}

	sink := o.sink
	if sink == nil {
		sink = NewSink(f.CreateClient(ctx, o.client...))
	}

	batchOpts := []reqlog.BatchOption{
		reqlog.WithLevel(o.level),
		reqlog.WithBatchSize(reqlog.DefaultBatchSize),
		reqlog.WithBubble(true),
	}
	if o.logs != nil {
		batchOpts = append(batchOpts, reqlog.WithLogger(o.logs))
	}

	return reqlog.NewBatchHandler(sink, f.router.Resolve(ctx, o.logGroup), o.logStream, batchOpts...)
}
