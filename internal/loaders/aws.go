package loaders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// AWSClientConfig describes how to reach an AWS service.
type AWSClientConfig struct {
	Region string

	// Endpoint overrides the service endpoint, for LocalStack or testing.
	Endpoint string

	// Static credentials. Both must be set to take effect; otherwise the
	// default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// Debug turns on wire logging (request/response with body) through the
	// aws.sdk channel.
	Debug bool
}

// resolveAWSClientConfig reads the identifiers shared by the AWS loaders.
func resolveAWSClientConfig(opts loader.Options, lookup loader.LookupFunc) (storeName string, cfg AWSClientConfig) {
	storeName, _ = opts.ResolveEnv(loader.OptAWSStoreName, lookup)
	cfg.Region, _ = opts.ResolveEnv(loader.OptAWSRegionName, lookup)
	cfg.Endpoint = opts.Get(loader.OptAWSEndpointURL)
	cfg.AccessKeyID = opts.Get(loader.OptAWSAccessKeyID)
	cfg.SecretAccessKey = opts.Get(loader.OptAWSSecretAccessKey)
	return storeName, cfg
}

// loadAWSConfig builds an aws.Config whose SDK logging goes through the
// aws.sdk channel.
func loadAWSConfig(ctx context.Context, cfg AWSClientConfig) (aws.Config, error) {
	if cfg.Region == "" {
		return aws.Config{}, fmt.Errorf("%w: no AWS region", loader.ErrConfigurationMissing)
	}

	channel := logging.GetChannel(logging.ChannelAWSSDK)
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithLogger(channel.SmithyLogger()),
	}
	if cfg.Debug {
		configOpts = append(configOpts, config.WithClientLogMode(aws.LogRequest|aws.LogResponseWithBody|aws.LogRetries))
	}

	// Use static credentials if provided (for LocalStack/testing)
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// isCredentialsError reports whether err means the SDK had no usable
// credentials. The SDK surfaces this as a signing failure.
func isCredentialsError(err error) bool {
	if errors.Is(err, loader.ErrCredentialsMissing) {
		return true
	}
	var signErr *v4.SigningError
	if errors.As(err, &signErr) {
		return true
	}
	return strings.Contains(err.Error(), "failed to retrieve credentials")
}

// classifyAWSError turns an SDK error into a ProviderError.
func classifyAWSError(name string, err error) *loader.ProviderError {
	pe := &loader.ProviderError{Loader: name, Kind: loader.ErrProviderRejected, Err: err}
	if isCredentialsError(err) {
		pe.Kind = loader.ErrCredentialsMissing
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
		pe.Message = apiErr.ErrorMessage()
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		pe.Metadata = map[string]string{
			"RequestID":      respErr.ServiceRequestID(),
			"HTTPStatusCode": strconv.Itoa(respErr.HTTPStatusCode()),
		}
	}
	return pe
}

// logProviderError writes pe the way every cloud loader reports failures.
// The payload never appears in these messages.
func logProviderError(logger *logging.Logger, pe *loader.ProviderError) {
	switch {
	case errors.Is(pe, loader.ErrCredentialsMissing):
		logger.Error("Missing credentials: %v", pe.Err)
	case pe.Code != "" || pe.Message != "":
		logger.Error("%s - %s (%s)", pe.Code, pe.Message, pe.MetadataString())
	default:
		logger.Error("Request failed: %v", pe.Err)
	}
}
