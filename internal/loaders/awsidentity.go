package loaders

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/secretbox/pkg/loader"
)

// STSAPI is the part of the STS client used to verify AWS credentials.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// STSFactory builds an STS client.
type STSFactory func(ctx context.Context, cfg AWSClientConfig) (STSAPI, error)

// NewSTSClient builds a real STS client.
func NewSTSClient(ctx context.Context, cfg AWSClientConfig) (STSAPI, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*sts.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *sts.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return sts.NewFromConfig(awsCfg, clientOpts...), nil
}

// AWSIdentity is the caller the AWS loaders would authenticate as.
type AWSIdentity struct {
	Account string
	ARN     string
	Region  string
}

// VerifyAWSIdentity resolves the AWS region the way the AWS loaders do and
// asks STS who the configured credentials belong to. Failures come back as
// *loader.ProviderError.
func VerifyAWSIdentity(ctx context.Context, opts loader.Options, lookup loader.LookupFunc, factory STSFactory) (AWSIdentity, error) {
	_, cfg := resolveAWSClientConfig(opts, lookup)
	identity := AWSIdentity{Region: cfg.Region}

	if factory == nil {
		return identity, &loader.ProviderError{Loader: "sts", Kind: loader.ErrDependencyUnavailable}
	}

	client, err := factory(ctx, cfg)
	if err != nil {
		return identity, classifyAWSError("sts", err)
	}

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return identity, classifyAWSError("sts", err)
	}

	identity.Account = aws.ToString(out.Account)
	identity.ARN = aws.ToString(out.Arn)
	return identity, nil
}
