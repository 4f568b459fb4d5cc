// Package loaders contains the built-in loader.Loader implementations.
package loaders

import (
	"context"
	"os"

	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// settings collects everything a loader may be configured with. Each loader
// reads only the fields it needs, which lets one Option list configure a
// whole registry.
type settings struct {
	logger    *logging.Logger
	lookupEnv loader.LookupFunc
	environ   func() []string

	secretsManager SecretsManagerFactory
	ssm            SSMFactory
	gcp            GCPSecretFactory
	azure          AzureSecretFactory
	keyringGet     KeyringGetFunc
	akeyless       AkeylessFactory
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:         logging.Default(),
		lookupEnv:      os.LookupEnv,
		environ:        os.Environ,
		secretsManager: NewSecretsManagerClient,
		ssm:            NewSSMClient,
		gcp:            NewGCPSecretClient,
		azure:          NewAzureSecretClient,
		keyringGet:     keyringGet,
		akeyless:       NewAkeylessClient,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures loaders built by this package.
type Option func(*settings)

// WithLogger sets the logger. Each loader logs under its own name.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEnvLookup overrides how environment fallbacks are looked up.
func WithEnvLookup(fn loader.LookupFunc) Option {
	return func(s *settings) {
		if fn != nil {
			s.lookupEnv = fn
		}
	}
}

// WithEnviron overrides the environment snapshot source of the environ
// loader.
func WithEnviron(fn func() []string) Option {
	return func(s *settings) {
		if fn != nil {
			s.environ = fn
		}
	}
}

// WithSecretsManagerFactory sets how Secrets Manager clients are built. A nil
// factory disables the awssecret loader.
func WithSecretsManagerFactory(f SecretsManagerFactory) Option {
	return func(s *settings) { s.secretsManager = f }
}

// WithSecretsManagerClient makes every awssecret load use client.
func WithSecretsManagerClient(client SecretsManagerAPI) Option {
	return WithSecretsManagerFactory(func(context.Context, AWSClientConfig) (SecretsManagerAPI, error) {
		return client, nil
	})
}

// WithSSMFactory sets how SSM clients are built. A nil factory disables the
// awsparameterstore loader.
func WithSSMFactory(f SSMFactory) Option {
	return func(s *settings) { s.ssm = f }
}

// WithSSMClient makes every awsparameterstore load use client.
func WithSSMClient(client SSMAPI) Option {
	return WithSSMFactory(func(context.Context, AWSClientConfig) (SSMAPI, error) {
		return client, nil
	})
}

// WithGCPSecretFactory sets how GCP Secret Manager clients are built. A nil
// factory disables the gcpsecret loader.
func WithGCPSecretFactory(f GCPSecretFactory) Option {
	return func(s *settings) { s.gcp = f }
}

// WithAzureSecretFactory sets how Key Vault clients are built. A nil factory
// disables the azurekeyvault loader.
func WithAzureSecretFactory(f AzureSecretFactory) Option {
	return func(s *settings) { s.azure = f }
}

// WithKeyringGet overrides the keyring read. A nil func disables the keyring
// loader.
func WithKeyringGet(fn KeyringGetFunc) Option {
	return func(s *settings) { s.keyringGet = fn }
}

// WithAkeylessFactory sets how Akeyless clients are built. A nil factory
// disables the akeyless loader.
func WithAkeylessFactory(f AkeylessFactory) Option {
	return func(s *settings) { s.akeyless = f }
}

// WithAkeylessClient makes every akeyless load use client.
func WithAkeylessClient(client AkeylessAPI) Option {
	return WithAkeylessFactory(func(context.Context, AkeylessClientConfig) (AkeylessAPI, error) {
		return client, nil
	})
}
