package loaders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// AWSSecretName is the type identifier of AWSSecretLoader.
const AWSSecretName = "awssecret"

// SecretsManagerAPI is the part of the Secrets Manager client the loader
// uses. This allows for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerFactory builds a Secrets Manager client.
type SecretsManagerFactory func(ctx context.Context, cfg AWSClientConfig) (SecretsManagerAPI, error)

// NewSecretsManagerClient builds a real Secrets Manager client.
func NewSecretsManagerClient(ctx context.Context, cfg AWSClientConfig) (SecretsManagerAPI, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return secretsmanager.NewFromConfig(awsCfg, clientOpts...), nil
}

// AWSSecretLoader loads a JSON object stored as a single AWS Secrets Manager
// secret. Values accumulate across calls until ResetValues.
type AWSSecretLoader struct {
	loader.Values

	factory   SecretsManagerFactory
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
	channel   *logging.Channel

	mu         sync.Mutex
	storeName  string
	regionName string
}

// NewAWSSecretLoader creates an AWS Secrets Manager loader.
func NewAWSSecretLoader(opts ...Option) *AWSSecretLoader {
	s := newSettings(opts)
	return &AWSSecretLoader{
		factory:   s.secretsManager,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(AWSSecretName),
		channel:   logging.GetChannel(logging.ChannelAWSSDK),
	}
}

// Name returns "awssecret".
func (l *AWSSecretLoader) Name() string {
	return AWSSecretName
}

// StoreName returns the secret identifier resolved by the last LoadValues.
func (l *AWSSecretLoader) StoreName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storeName
}

// RegionName returns the region resolved by the last LoadValues.
func (l *AWSSecretLoader) RegionName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regionName
}

// LoadValues fetches the secret named by aws_sstore_name (or
// AWS_SSTORE_NAME) from the region named by aws_region_name (or
// AWS_REGION_NAME, then AWS_REGION) and merges its fields into the mapping.
func (l *AWSSecretLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
	storeName, clientCfg := resolveAWSClientConfig(opts, l.lookupEnv)
	clientCfg.Debug = l.logger.DebugEnabled()

	l.mu.Lock()
	l.storeName = storeName
	l.regionName = clientCfg.Region
	l.mu.Unlock()

	if l.factory == nil {
		l.logger.Error("AWS Secrets Manager support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}
	if storeName == "" {
		l.logger.Error("No secrets store name given: set %s or AWS_SSTORE_NAME", loader.OptAWSStoreName)
		return false
	}
	if clientCfg.Region == "" {
		l.logger.Error("No AWS region given: set %s, AWS_REGION_NAME or AWS_REGION: %v", loader.OptAWSRegionName, loader.ErrConfigurationMissing)
		return false
	}

	client, err := l.factory(ctx, clientCfg)
	if err != nil {
		logProviderError(l.logger, classifyAWSError(AWSSecretName, err))
		return false
	}

	secrets, err := l.fetch(ctx, client, storeName)
	if err != nil {
		var pe *loader.ProviderError
		if errors.As(err, &pe) {
			logProviderError(l.logger, pe)
		} else {
			l.logger.Error("Secret %q could not be decoded: %v", storeName, err)
		}
		return false
	}

	l.Update(secrets)
	l.logger.Debug("Loaded %d values from secret %q", len(secrets), storeName)
	return len(secrets) > 0
}

// fetch retrieves and decodes the secret. The SDK channel redacts wire
// content for the duration of the request.
func (l *AWSSecretLoader) fetch(ctx context.Context, client SecretsManagerAPI, storeName string) (map[string]string, error) {
	release := l.channel.Install(logging.SecretsFilter)
	defer release()

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(storeName),
	})
	if err != nil {
		return nil, classifyAWSError(AWSSecretName, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty response", loader.ErrMalformedPayload)
	}

	switch {
	case out.SecretString != nil:
		return decodePayloadString(*out.SecretString)
	case out.SecretBinary != nil:
		return decodePayload(out.SecretBinary)
	default:
		return map[string]string{}, nil
	}
}
