package cwlog

import (
	"context"
	"strings"

	"github.com/advdv/reqlog"
)

// DeploymentEnvironment is the environment the application is deployed to.
type DeploymentEnvironment string

const (
	Live  DeploymentEnvironment = "live"
	Test  DeploymentEnvironment = "test"
	Dev   DeploymentEnvironment = "dev"
	Local DeploymentEnvironment = "local"
)

// ParseDeploymentEnvironment maps a reported environment name onto the known environments. Anything that is not
// live, test or dev is local.
func ParseDeploymentEnvironment(name string) DeploymentEnvironment {
	switch env := DeploymentEnvironment(strings.ToLower(strings.TrimSpace(name))); env {
	case Live, Test, Dev:
		return env
	default:
		return Local
	}
}

// EnvironmentDetector reports the name of the environment the application runs in. It is an optional
// collaborator of [LogGroupRouter].
type EnvironmentDetector interface {
	Name(ctx context.Context) (string, error)
}

// DefaultLogNamespace is used when a router is created without a namespace.
const DefaultLogNamespace = "app"

// DefaultEnvVariable is the ambient variable consulted when no detector resolves the environment.
const DefaultEnvVariable = "APP_ENV"

// LogGroupRouter derives the destination log group from the deployment environment.
type LogGroupRouter struct {
	namespace string
	detector  EnvironmentDetector
	variable  string
	lookupEnv reqlog.LookupEnvFunc
}

// RouterOption configures a [LogGroupRouter].
type RouterOption func(*LogGroupRouter)

// WithDetector sets the environment detection service. A nil detector is the same as none.
func WithDetector(d EnvironmentDetector) RouterOption {
	return func(r *LogGroupRouter) { r.detector = d }
}

// WithEnvVariable sets the ambient variable that names the environment.
func WithEnvVariable(name string) RouterOption {
	return func(r *LogGroupRouter) {
		if name != "" {
			r.variable = name
		}
	}
}

// WithRouterLookupEnv replaces [os.LookupEnv], mostly for tests.
func WithRouterLookupEnv(fn reqlog.LookupEnvFunc) RouterOption {
	return func(r *LogGroupRouter) { r.lookupEnv = fn }
}

// NewLogGroupRouter inits a router for log groups named "/<namespace>/<environment>".
func NewLogGroupRouter(namespace string, opts ...RouterOption) *LogGroupRouter {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		namespace = DefaultLogNamespace
	}

	r := &LogGroupRouter{namespace: namespace, variable: DefaultEnvVariable}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Environment resolves the deployment environment: the detector first, then the ambient variable, then local.
func (r *LogGroupRouter) Environment(ctx context.Context) DeploymentEnvironment {
	var detect reqlog.Probe
	if r.detector != nil {
		detect = reqlog.Guard(r.detector.Name)
	}

	name, ok := reqlog.FirstOf(ctx, detect, reqlog.EnvVar(r.lookupEnv, r.variable))
	if !ok {
		return Local
	}

	return ParseDeploymentEnvironment(name)
}

// Resolve returns override when it is set and the log group of the detected environment otherwise. The result is
// never empty.
func (r *LogGroupRouter) Resolve(ctx context.Context, override string) string {
	if override != "" {
		return override
	}

	return LogGroupName(r.namespace, r.Environment(ctx))
}

// LogGroupName composes the log group of an environment.
func LogGroupName(namespace string, env DeploymentEnvironment) string {
	return "/" + namespace + "/" + string(env)
}
