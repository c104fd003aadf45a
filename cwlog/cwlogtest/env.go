package cwlogtest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [cwlog.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets the env vars the pipeline reads to test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - REQLOG_SERVICE_NAME: "test"
//   - REQLOG_HEALTH_PATH: "/health"
//   - REQLOG_OTEL_EXPORTER: "none"
//   - REQLOG_LOG_GROUP: "/app/test"
//   - REQLOG_LOG_STREAM: "test"
//   - AWS_REGION: "us-east-1"
//   - AWS_ACCESS_KEY_ID: "test"
//   - AWS_SECRET_ACCESS_KEY: "test"
//
// Use the returned [Env] to override individual values:
//
//	cwlogtest.SetBaseEnv(t, 18085).LogGroup("").AppEnv("live")
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("REQLOG_PORT", strconv.Itoa(port))
	t.Setenv("REQLOG_SERVICE_NAME", "test")
	t.Setenv("REQLOG_HEALTH_PATH", "/health")
	t.Setenv("REQLOG_OTEL_EXPORTER", "none")
	t.Setenv("REQLOG_LOG_GROUP", "/app/test")
	t.Setenv("REQLOG_LOG_STREAM", "test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

// ServiceName overrides REQLOG_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("REQLOG_SERVICE_NAME", name)
	return e
}

// HealthPath overrides REQLOG_HEALTH_PATH.
func (e *Env) HealthPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("REQLOG_HEALTH_PATH", path)
	return e
}

// LogGroup overrides REQLOG_LOG_GROUP. An empty group lets the router decide.
func (e *Env) LogGroup(group string) *Env {
	e.t.Helper()
	e.t.Setenv("REQLOG_LOG_GROUP", group)
	return e
}

// AppEnv sets APP_ENV, the default variable naming the deployment environment.
func (e *Env) AppEnv(name string) *Env {
	e.t.Helper()
	e.t.Setenv("APP_ENV", name)
	return e
}

// Fields overrides REQLOG_FIELDS.
func (e *Env) Fields(fields string) *Env {
	e.t.Helper()
	e.t.Setenv("REQLOG_FIELDS", fields)
	return e
}

// AccountHeaders sets REQLOG_USER_ID_HEADER and REQLOG_USER_NAME_HEADER.
func (e *Env) AccountHeaders(idHeader, nameHeader string) *Env {
	e.t.Helper()
	e.t.Setenv("REQLOG_USER_ID_HEADER", idHeader)
	e.t.Setenv("REQLOG_USER_NAME_HEADER", nameHeader)
	return e
}
