package cwlog

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// SecretsManagerStore implements SecretStore using the AWS Secrets Manager caching client.
type SecretsManagerStore struct {
	cache  *secretcache.Cache
	prefix string
}

// NewSecretsManagerStore creates a store reading secret "<prefix><name>" from Secrets Manager.
func NewSecretsManagerStore(cfg aws.Config, prefix string) (*SecretsManagerStore, error) {
	client := secretsmanager.NewFromConfig(cfg)
	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create secret cache")
	}
	return &SecretsManagerStore{cache: cache, prefix: prefix}, nil
}

// GetSecret retrieves a secret value from AWS Secrets Manager with caching.
func (s *SecretsManagerStore) GetSecret(ctx context.Context, name string) (string, error) {
	secretID := s.prefix + name
	secret, err := s.cache.GetSecretStringWithContext(ctx, secretID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get secret %q", secretID)
	}
	return secret, nil
}

// ParameterAPI is the part of the SSM client used by [ParameterStore].
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore implements SecretStore using SSM Parameter Store. SecureString parameters are decrypted.
type ParameterStore struct {
	client ParameterAPI
	prefix string
}

// NewParameterStore creates a store reading parameter "<prefix><name>".
func NewParameterStore(client ParameterAPI, prefix string) *ParameterStore {
	return &ParameterStore{client: client, prefix: prefix}
}

// GetSecret retrieves a (decrypted) parameter value.
func (s *ParameterStore) GetSecret(ctx context.Context, name string) (string, error) {
	paramName := s.prefix + name
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get parameter %q", paramName)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Errorf("parameter %q has no value", paramName)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// DocumentStore reads all secrets from a single JSON document held by another store. Names are gjson paths
// into the document, e.g. "aws_access_key_id" or "cloudwatch.secret".
type DocumentStore struct {
	store      SecretStore
	documentID string
}

// NewDocumentStore wraps store so that names resolve inside the document stored under documentID.
func NewDocumentStore(store SecretStore, documentID string) *DocumentStore {
	return &DocumentStore{store: store, documentID: documentID}
}

// GetSecret extracts the named path from the document.
func (s *DocumentStore) GetSecret(ctx context.Context, name string) (string, error) {
	doc, err := s.store.GetSecret(ctx, s.documentID)
	if err != nil {
		return "", err
	}

	result := gjson.Get(doc, name)
	if !result.Exists() {
		return "", errors.Errorf("secret path %q not found in secret %q", name, s.documentID)
	}

	return result.String(), nil
}

// NewSecretStore builds the secret store selected by the environment. It returns a nil store when none is
// configured, which is a normal state: credentials then come from the caller or the environment only.
func NewSecretStore(e Environment, cfg aws.Config) (SecretStore, error) {
	be := e.base()

	var store SecretStore
	switch be.SecretStore {
	case SecretStoreNone:
		return nil, nil
	case SecretStoreSecretsManager:
		sm, err := NewSecretsManagerStore(cfg, be.SecretPrefix)
		if err != nil {
			return nil, err
		}
		store = sm
	case SecretStoreSSM:
		store = NewParameterStore(ssm.NewFromConfig(cfg), be.SecretPrefix)
	default:
		return nil, errors.Errorf("unsupported secret store %q", be.SecretStore)
	}

	if be.SecretDocument != "" {
		return NewDocumentStore(store, be.SecretDocument), nil
	}

	return store, nil
}
