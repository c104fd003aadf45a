package cwlog

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const awsConfigTimeout = 10 * time.Second

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	Sink       reqlog.Sink
	Processors []reqlog.Processor
	FxOptions  []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithSink replaces the CloudWatch sink of the remote handler.
func WithSink(s reqlog.Sink) Option {
	return func(c *AppConfig) {
		c.Sink = s
	}
}

// WithProcessors appends processors to the remote pipeline. They run after the session and trace processors.
func WithProcessors(ps ...reqlog.Processor) Option {
	return func(c *AppConfig) {
		c.Processors = append(c.Processors, ps...)
	}
}

// NewApp creates an app with the request logging pipeline wired in.
//
// The routing function can request any types that are provided via fx options.
// At minimum, it should accept *Mux for routing.
//
// Example:
//
//	cwlog.NewApp[Env](func(m *cwlog.Mux, api *cwlog.SettingsAPI, h *Handlers) {
//	    api.Register(m)
//	    m.HandleFunc("GET /nodes/{id}", h.ShowNode)
//	},
//	    cwlog.WithFx(fx.Provide(NewHandlers)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](routing, opts...)...),
	}
}

// FxOptions returns the options of the dependency graph built by [NewApp].
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 24+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(fx.Annotate(NewLocalLogger, fx.ResultTags(`name:"local"`))),
		fx.Provide(fx.Annotate(NewReqlogLogger, fx.ParamTags(`name:"local"`))),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewHTTPTransport),
		fx.Provide(provideAWSConfig),
		fx.Provide(NewSecretStore),
		fx.Provide(provideCredentialResolver),
		fx.Provide(provideRouter),
		fx.Provide(NewClientFactory),
		fx.Provide(provideHandler),
		fx.Provide(provideAlarm),
		fx.Provide(provideLogger),
		fx.Provide(provideSettingsStore),
		fx.Provide(reqlog.NewFieldPolicy),
		fx.Provide(provideCatalog),
		fx.Provide(NewSettingsAPI),
		fx.Provide(NewMux),
		fx.Provide(NewServer),
		fx.Provide(NewRuntime[E]),
		fx.Invoke(startServerHook),
		fx.Invoke(routing),
	}...)

	return append(baseOpts, cfg.FxOptions...)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application with the given context.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}

// NewAWSConfig loads the default AWS SDK v2 configuration. The region falls back to the sink region when the
// ambient configuration has none.
func NewAWSConfig(ctx context.Context, env Environment) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to load aws config")
	}
	if cfg.Region == "" {
		cfg.Region = env.base().Region
	}
	return cfg, nil
}

// provideAWSConfig loads the AWS config with a timeout and instruments it with OpenTelemetry.
func provideAWSConfig(env Environment, tp trace.TracerProvider, prop propagation.TextMapPropagator) (aws.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), awsConfigTimeout)
	defer cancel()

	cfg, err := NewAWSConfig(ctx, env)
	if err != nil {
		return cfg, err
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions,
		otelaws.WithTracerProvider(tp),
		otelaws.WithTextMapPropagator(prop),
	)
	return cfg, nil
}

func provideCredentialResolver(store SecretStore) *CredentialResolver {
	return NewCredentialResolver(store)
}

func provideRouter(env Environment, t http.RoundTripper) *LogGroupRouter {
	e := env.base()

	opts := []RouterOption{WithEnvVariable(e.EnvVariable)}
	if e.EnvDetectURL != "" {
		opts = append(opts, WithDetector(NewHTTPEnvironmentDetector(e.EnvDetectURL, t)))
	}

	return NewLogGroupRouter(e.LogNamespace, opts...)
}

type handlerParams struct {
	fx.In

	Lc      fx.Lifecycle
	Env     Environment
	Cfg     AppConfig
	Factory *ClientFactory
	Logs    reqlog.Logger
}

// provideHandler creates the remote handler. It is closed on stop, after the server stopped accepting requests.
func provideHandler(p handlerParams) (*reqlog.BatchHandler, error) {
	e := p.Env.base()

	opts := []HandlerOption{
		HandlerLevel(e.LogLevel),
		HandlerLogGroup(e.LogGroup),
		HandlerLogStream(e.LogStream),
		HandlerClient(ForRegion(e.Region)),
		HandlerLogger(p.Logs),
	}
	if p.Cfg.Sink != nil {
		opts = append(opts, HandlerSink(p.Cfg.Sink))
	}

	ctx, cancel := context.WithTimeout(context.Background(), awsConfigTimeout)
	defer cancel()

	h, err := p.Factory.CreateHandler(ctx, opts...)
	if err != nil {
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := h.Close(ctx); err != nil {
				p.Logs.LogDeliveryFailure(err)
			}
			return nil
		},
	})

	return h, nil
}

// provideAlarm returns a nil Alarm when no queue is configured.
func provideAlarm(env Environment, cfg aws.Config) Alarm {
	e := env.base()
	if e.AlarmQueueURL == "" {
		return nil
	}
	return NewSQSAlarm(sqs.NewFromConfig(cfg), e.AlarmQueueURL, e.ServiceName)
}

type loggerParams struct {
	fx.In

	Local   *zap.Logger `name:"local"`
	Handler *reqlog.BatchHandler
	Alarm   Alarm
	Cfg     AppConfig
}

func provideLogger(p loggerParams) *zap.Logger {
	ps := append([]reqlog.Processor{reqlog.SessionProcessor(), TraceProcessor()}, p.Cfg.Processors...)
	return NewLogger(p.Local, p.Handler, p.Alarm, ps...)
}

// provideSettingsStore persists settings in DynamoDB when a table is configured. Otherwise they live in memory,
// seeded from REQLOG_FIELDS.
func provideSettingsStore(env Environment, cfg aws.Config) (reqlog.SettingsStore, error) {
	e := env.base()
	if e.SettingsTable != "" {
		return NewDynamoSettings(dynamodb.NewFromConfig(cfg), e.SettingsTable), nil
	}

	store := reqlog.NewMemorySettings()
	if err := store.Set(context.Background(), reqlog.SensitiveFieldsKey, e.Fields); err != nil {
		return nil, err
	}
	return store, nil
}

// provideCatalog reads the catalog from S3 when a bucket is configured. Otherwise the configured fields are the
// catalog.
func provideCatalog(env Environment, cfg aws.Config) reqlog.FieldCatalog {
	e := env.base()
	if e.FieldCatalogBucket != "" {
		return NewS3Catalog(s3.NewFromConfig(cfg), e.FieldCatalogBucket, e.FieldCatalogKey)
	}
	return reqlog.StaticCatalog(e.Fields)
}
