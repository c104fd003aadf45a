package cwlog

import (
	"context"
	"strings"

	"github.com/advdv/reqlog"
)

// Names of the credentials the sink client needs. The environment variables are the upper-cased names.
const (
	AccessKeyIDName     = "aws_access_key_id"
	SecretAccessKeyName = "aws_secret_access_key"
)

// SecretStore looks up a named secret. It is an optional collaborator of [CredentialResolver].
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Credentials is an access key pair. It is only usable when both halves are set.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Valid reports whether both halves of the pair are set.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// CredentialResolver resolves credentials from, in order: the value passed by the caller, the environment
// variable named after the upper-cased credential name and the secret store. Resolution is a one-shot probe:
// secret store failures read as absent and are never returned.
type CredentialResolver struct {
	lookupEnv reqlog.LookupEnvFunc
	store     SecretStore
}

// ResolverOption configures a [CredentialResolver].
type ResolverOption func(*CredentialResolver)

// WithLookupEnv replaces [os.LookupEnv], mostly for tests.
func WithLookupEnv(fn reqlog.LookupEnvFunc) ResolverOption {
	return func(r *CredentialResolver) { r.lookupEnv = fn }
}

// NewCredentialResolver inits a resolver. The store may be nil when no secret store is available.
func NewCredentialResolver(store SecretStore, opts ...ResolverOption) *CredentialResolver {
	r := &CredentialResolver{store: store}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the value of the named credential, or false when no source has it.
func (r *CredentialResolver) Resolve(ctx context.Context, name, explicit string) (string, bool) {
	return reqlog.FirstOf(ctx, r.probes(name, explicit)...)
}

// Credentials resolves the access key pair. It returns false unless both halves resolved, in which case the
// caller should rely on ambient credentials instead.
func (r *CredentialResolver) Credentials(ctx context.Context, accessKeyID, secretAccessKey string) (Credentials, bool) {
	key, _ := r.Resolve(ctx, AccessKeyIDName, accessKeyID)
	secret, _ := r.Resolve(ctx, SecretAccessKeyName, secretAccessKey)

	creds := Credentials{AccessKeyID: key, SecretAccessKey: secret}
	if !creds.Valid() {
		return Credentials{}, false
	}

	return creds, true
}

func (r *CredentialResolver) probes(name, explicit string) []reqlog.Probe {
	probes := []reqlog.Probe{
		reqlog.Value(explicit),
		reqlog.EnvVar(r.lookupEnv, strings.ToUpper(name)),
	}
	if r.store != nil {
		probes = append(probes, reqlog.Guard(func(ctx context.Context) (string, error) {
			return r.store.GetSecret(ctx, name)
		}))
	}

	return probes
}
