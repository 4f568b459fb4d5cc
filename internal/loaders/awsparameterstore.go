package loaders

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// AWSParameterStoreName is the type identifier of AWSParameterStoreLoader.
const AWSParameterStoreName = "awsparameterstore"

// SSMAPI defines the SSM Parameter Store operations the loader needs.
// This allows for mocking in tests
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMFactory builds an SSM client.
type SSMFactory func(ctx context.Context, cfg AWSClientConfig) (SSMAPI, error)

// NewSSMClient builds a real SSM client.
func NewSSMClient(ctx context.Context, cfg AWSClientConfig) (SSMAPI, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*ssm.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *ssm.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return ssm.NewFromConfig(awsCfg, clientOpts...), nil
}

// AWSParameterStoreLoader loads every parameter below a path prefix. Each
// parameter becomes one key: its name relative to the prefix.
type AWSParameterStoreLoader struct {
	loader.Values

	factory   SSMFactory
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
	channel   *logging.Channel
}

// NewAWSParameterStoreLoader creates an SSM Parameter Store loader.
func NewAWSParameterStoreLoader(opts ...Option) *AWSParameterStoreLoader {
	s := newSettings(opts)
	return &AWSParameterStoreLoader{
		factory:   s.ssm,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(AWSParameterStoreName),
		channel:   logging.GetChannel(logging.ChannelAWSSDK),
	}
}

// Name returns "awsparameterstore".
func (l *AWSParameterStoreLoader) Name() string {
	return AWSParameterStoreName
}

// LoadValues reads the parameters under the aws_sstore_name path (or
// AWS_SSTORE_NAME), recursively and decrypted, and merges them into the
// mapping.
func (l *AWSParameterStoreLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
	path, clientCfg := resolveAWSClientConfig(opts, l.lookupEnv)
	clientCfg.Debug = l.logger.DebugEnabled()

	if l.factory == nil {
		l.logger.Error("AWS Parameter Store support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}
	if path == "" {
		l.logger.Error("No parameter path given: set %s or AWS_SSTORE_NAME", loader.OptAWSStoreName)
		return false
	}
	if clientCfg.Region == "" {
		l.logger.Error("No AWS region given: set %s, AWS_REGION_NAME or AWS_REGION: %v", loader.OptAWSRegionName, loader.ErrConfigurationMissing)
		return false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	client, err := l.factory(ctx, clientCfg)
	if err != nil {
		logProviderError(l.logger, classifyAWSError(AWSParameterStoreName, err))
		return false
	}

	values, err := l.fetch(ctx, client, path)
	if err != nil {
		logProviderError(l.logger, classifyAWSError(AWSParameterStoreName, err))
		return false
	}

	l.Update(values)
	l.logger.Debug("Loaded %d parameters under %q", len(values), path)
	return len(values) > 0
}

// fetch pages through the path. Redaction stays installed for the whole
// pagination window.
func (l *AWSParameterStoreLoader) fetch(ctx context.Context, client SSMAPI, path string) (map[string]string, error) {
	release := l.channel.Install(logging.SecretsFilter)
	defer release()

	paginator := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})

	values := make(map[string]string)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, param := range page.Parameters {
			key := parameterKey(path, aws.ToString(param.Name))
			if key == "" {
				continue
			}
			values[key] = aws.ToString(param.Value)
		}
	}
	return values, nil
}

// parameterKey strips the path prefix and surrounding slashes from a
// parameter name.
func parameterKey(path, name string) string {
	key := strings.TrimPrefix(name, strings.TrimSuffix(path, "/"))
	return strings.Trim(key, "/")
}
