package cwlog

import (
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	base() BaseEnvironment
}

// BaseEnvironment contains the environment variables of the logging pipeline.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port          int           `env:"REQLOG_PORT" envDefault:"8080"`
	ServiceName   string        `env:"REQLOG_SERVICE_NAME" envDefault:"reqlog"`
	HealthPath    string        `env:"REQLOG_HEALTH_PATH" envDefault:"/health"`
	LocalLogLevel zapcore.Level `env:"REQLOG_LOCAL_LOG_LEVEL" envDefault:"info"`
	OtelExporter  string        `env:"REQLOG_OTEL_EXPORTER" envDefault:"stdout"`

	// Remote sink.
	LogLevel     zapcore.Level `env:"REQLOG_LOG_LEVEL" envDefault:"debug"`
	Region       string        `env:"REQLOG_REGION" envDefault:"us-west-2"`
	LogNamespace string        `env:"REQLOG_LOG_NAMESPACE" envDefault:"app"`
	LogGroup     string        `env:"REQLOG_LOG_GROUP"`
	LogStream    string        `env:"REQLOG_LOG_STREAM" envDefault:"drupal"`

	// Deployment environment detection.
	EnvVariable  string `env:"REQLOG_ENV_VARIABLE" envDefault:"APP_ENV"`
	EnvDetectURL string `env:"REQLOG_ENV_DETECT_URL"`

	// Secret store consulted for credentials that are not in the environment.
	SecretStore    string `env:"REQLOG_SECRET_STORE"`
	SecretPrefix   string `env:"REQLOG_SECRET_PREFIX"`
	SecretDocument string `env:"REQLOG_SECRET_DOCUMENT"`

	// Sensitive field settings and the field picker.
	SettingsTable        string   `env:"REQLOG_SETTINGS_TABLE"`
	FieldCatalogBucket   string   `env:"REQLOG_FIELD_CATALOG_BUCKET"`
	FieldCatalogKey      string   `env:"REQLOG_FIELD_CATALOG_KEY" envDefault:"fields.json"`
	Fields               []string `env:"REQLOG_FIELDS" envSeparator:","`
	AlarmQueueURL        string   `env:"REQLOG_ALARM_QUEUE_URL"`
	SessionCookie        string   `env:"REQLOG_SESSION_COOKIE" envDefault:"SESS"`
	UserIDHeader         string   `env:"REQLOG_USER_ID_HEADER"`
	UserNameHeader       string   `env:"REQLOG_USER_NAME_HEADER"`
	TrustForwardedHeader bool     `env:"REQLOG_TRUST_FORWARDED" envDefault:"false"`
}

func (e BaseEnvironment) base() BaseEnvironment {
	return e
}

var _ Environment = BaseEnvironment{}

// Secret store kinds accepted by REQLOG_SECRET_STORE.
const (
	SecretStoreNone           = ""
	SecretStoreSecretsManager = "secretsmanager"
	SecretStoreSSM            = "ssm"
)

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}

		switch e.base().SecretStore {
		case SecretStoreNone, SecretStoreSecretsManager, SecretStoreSSM:
		default:
			return e, errors.Errorf("unsupported REQLOG_SECRET_STORE: %q (supported: %s, %s)",
				e.base().SecretStore, SecretStoreSecretsManager, SecretStoreSSM)
		}

		return e, nil
	}
}
