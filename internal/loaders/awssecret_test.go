package loaders_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	smithylogging "github.com/aws/smithy-go/logging"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretbox/internal/loaders"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"github.com/systmms/secretbox/pkg/loader/loadertest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func secretString(s string) *secretsmanager.GetSecretValueOutput {
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(s)}
}

func TestAWSSecretLoaderContract(t *testing.T) {
	t.Parallel()

	loadertest.RunContractTests(t, loadertest.ContractTest{
		CreateLoader: func(t *testing.T) loader.Loader {
			client := &fakeSecretsManager{output: secretString(`{"API_KEY":"abc"}`)}
			return loaders.NewAWSSecretLoader(
				loaders.WithSecretsManagerClient(client),
				loaders.WithEnvLookup(envMap(nil)),
				loaders.WithLogger(logging.Nop()),
			)
		},
		Options: loader.NewOptions(
			loader.OptAWSStoreName, "prod/app",
			loader.OptAWSRegionName, "us-east-1",
		),
		ExpectLoad: true,
	})
}

func TestAWSSecretLoaderLoadsSecretString(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{output: secretString(`{"A":"1","B":"2"}`)}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(map[string]string{
			"AWS_SSTORE_NAME": "prod/app",
			"AWS_REGION":      "eu-west-1",
		})),
		loaders.WithLogger(logging.Nop()),
	)

	ok := l.LoadValues(context.Background(), nil)

	assert.True(t, ok)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, l.GetValues())
	assert.Equal(t, []string{"prod/app"}, client.Calls())
	assert.Equal(t, "prod/app", l.StoreName())
	assert.Equal(t, "eu-west-1", l.RegionName())
}

func TestAWSSecretLoaderLoadsSecretBinary(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{output: &secretsmanager.GetSecretValueOutput{
		SecretBinary: []byte(`{"TOKEN":"t0k3n","PORT":5432}`),
	}}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logging.Nop()),
	)

	ok := l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "bin", loader.OptAWSRegionName, "us-east-1",
	))

	assert.True(t, ok)
	assert.Equal(t, map[string]string{"TOKEN": "t0k3n", "PORT": "5432"}, l.GetValues())
}

func TestAWSSecretLoaderEmptySecret(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{output: &secretsmanager.GetSecretValueOutput{}}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logging.Nop()),
	)

	ok := l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "empty", loader.OptAWSRegionName, "us-east-1",
	))

	assert.False(t, ok, "a secret without fields loads nothing")
	assert.Empty(t, l.GetValues())
}

func TestAWSSecretLoaderAccumulates(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logging.Nop()),
	)
	opts := loader.NewOptions(loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1")

	client.output = secretString(`{"A":"1","B":"2"}`)
	require.True(t, l.LoadValues(context.Background(), opts))
	client.output = secretString(`{"B":"3","C":"4"}`)
	require.True(t, l.LoadValues(context.Background(), opts))

	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, l.GetValues())

	l.ResetValues()
	assert.Empty(t, l.GetValues())
}

func TestAWSSecretLoaderResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       loader.Options
		env        map[string]string
		wantStore  string
		wantRegion string
	}{
		{
			name:       "options_win_over_env",
			opts:       loader.NewOptions(loader.OptAWSStoreName, "opt-store", loader.OptAWSRegionName, "opt-region"),
			env:        map[string]string{"AWS_SSTORE_NAME": "env-store", "AWS_REGION_NAME": "env-region"},
			wantStore:  "opt-store",
			wantRegion: "opt-region",
		},
		{
			name:       "region_name_before_platform_region",
			env:        map[string]string{"AWS_SSTORE_NAME": "env-store", "AWS_REGION_NAME": "env-region", "AWS_REGION": "lambda-region"},
			wantStore:  "env-store",
			wantRegion: "env-region",
		},
		{
			name:       "platform_region_fallback",
			env:        map[string]string{"AWS_SSTORE_NAME": "env-store", "AWS_REGION": "lambda-region"},
			wantStore:  "env-store",
			wantRegion: "lambda-region",
		},
		{
			name:       "explicit_empty_region_is_set",
			opts:       loader.NewOptions(loader.OptAWSStoreName, "s", loader.OptAWSRegionName, ""),
			env:        map[string]string{"AWS_REGION": "lambda-region"},
			wantStore:  "s",
			wantRegion: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got loaders.AWSClientConfig
			l := loaders.NewAWSSecretLoader(
				loaders.WithSecretsManagerFactory(func(_ context.Context, cfg loaders.AWSClientConfig) (loaders.SecretsManagerAPI, error) {
					got = cfg
					return &fakeSecretsManager{output: secretString(`{"K":"V"}`)}, nil
				}),
				loaders.WithEnvLookup(envMap(tt.env)),
				loaders.WithLogger(logging.Nop()),
			)

			l.LoadValues(context.Background(), tt.opts)

			assert.Equal(t, tt.wantStore, l.StoreName())
			assert.Equal(t, tt.wantRegion, l.RegionName())
			assert.Equal(t, tt.wantRegion, got.Region)
		})
	}
}

func TestAWSSecretLoaderMissingStoreName(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{output: secretString(`{"A":"1"}`)}
	logger, logs := observedLogger()
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(map[string]string{"AWS_REGION": "us-east-1"})),
		loaders.WithLogger(logger),
	)
	l.Update(map[string]string{"KEEP": "me"})

	ok := l.LoadValues(context.Background(), nil)

	assert.False(t, ok)
	assert.Equal(t, map[string]string{"KEEP": "me"}, l.GetValues(), "mapping must be unchanged")
	assert.Empty(t, client.Calls(), "no request without a store name")
	require.NotEmpty(t, messages(logs, zapcore.ErrorLevel))
}

func TestAWSSecretLoaderExplicitEmptyStoreNameIsMissing(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{output: secretString(`{"A":"1"}`)}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(map[string]string{"AWS_SSTORE_NAME": "from-env"})),
		loaders.WithLogger(logging.Nop()),
	)

	ok := l.LoadValues(context.Background(), loader.NewOptions(loader.OptAWSStoreName, ""))

	assert.False(t, ok)
	assert.Empty(t, client.Calls())
}

func TestAWSSecretLoaderDependencyUnavailable(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerFactory(nil),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logger),
	)

	ok := l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
	))

	assert.False(t, ok)
	errs := messages(logs, zapcore.ErrorLevel)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "not available")
}

func TestAWSSecretLoaderMissingRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts loader.Options
		env  map[string]string
	}{
		{name: "unset", opts: loader.NewOptions(loader.OptAWSStoreName, "s")},
		{
			name: "explicit_empty",
			opts: loader.NewOptions(loader.OptAWSStoreName, "s", loader.OptAWSRegionName, ""),
			env:  map[string]string{"AWS_REGION": "us-east-1"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeSecretsManager{output: secretString(`{"A":"1"}`)}
			logger, logs := observedLogger()
			l := loaders.NewAWSSecretLoader(
				loaders.WithSecretsManagerClient(client),
				loaders.WithEnvLookup(envMap(tt.env)),
				loaders.WithLogger(logger),
			)

			ok := l.LoadValues(context.Background(), tt.opts)

			assert.False(t, ok)
			assert.Empty(t, l.GetValues())
			assert.Empty(t, client.Calls(), "no request without a region")
			errs := messages(logs, zapcore.ErrorLevel)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "No AWS region given")
			assert.Contains(t, errs[0], loader.ErrConfigurationMissing.Error())
		})
	}
}

func TestNewSecretsManagerClientRequiresRegion(t *testing.T) {
	t.Parallel()

	_, err := loaders.NewSecretsManagerClient(context.Background(), loaders.AWSClientConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrConfigurationMissing)
}

func TestAWSSecretLoaderFactoryError(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerFactory(func(context.Context, loaders.AWSClientConfig) (loaders.SecretsManagerAPI, error) {
			return nil, errors.New("failed to load AWS config: broken profile")
		}),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logger),
	)

	ok := l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
	))

	assert.False(t, ok)
	errs := messages(logs, zapcore.ErrorLevel)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "broken profile")
}

func TestAWSSecretLoaderProviderErrors(t *testing.T) {
	t.Parallel()

	notFound := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadRequest}},
			Err: &smithy.GenericAPIError{
				Code:    "ResourceNotFoundException",
				Message: "Secrets Manager can't find the specified secret.",
			},
		},
		RequestID: "req-123",
	}

	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{
			name:    "signing_error",
			err:     &v4.SigningError{Err: errors.New("failed to retrieve credentials: no providers")},
			wantLog: "Missing credentials",
		},
		{
			name:    "credentials_string",
			err:     errors.New("operation error Secrets Manager: GetSecretValue, failed to retrieve credentials"),
			wantLog: "Missing credentials",
		},
		{
			name:    "wrapped_sentinel",
			err:     loader.ErrCredentialsMissing,
			wantLog: "Missing credentials",
		},
		{
			name:    "api_error_with_metadata",
			err:     notFound,
			wantLog: "ResourceNotFoundException - Secrets Manager can't find the specified secret. (HTTPStatusCode=400, RequestID=req-123)",
		},
		{
			name:    "api_error_without_metadata",
			err:     &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"},
			wantLog: "AccessDeniedException - denied ()",
		},
		{
			name:    "transport_error",
			err:     errors.New("dial tcp: i/o timeout"),
			wantLog: "Request failed: dial tcp: i/o timeout",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, logs := observedLogger()
			l := loaders.NewAWSSecretLoader(
				loaders.WithSecretsManagerClient(&fakeSecretsManager{err: tt.err}),
				loaders.WithEnvLookup(envMap(nil)),
				loaders.WithLogger(logger),
			)
			l.Update(map[string]string{"KEEP": "me"})

			var ok bool
			require.NotPanics(t, func() {
				ok = l.LoadValues(context.Background(), loader.NewOptions(
					loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
				))
			})

			assert.False(t, ok)
			assert.Equal(t, map[string]string{"KEEP": "me"}, l.GetValues())
			errs := messages(logs, zapcore.ErrorLevel)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantLog)
		})
	}
}

func TestAWSSecretLoaderMalformedPayload(t *testing.T) {
	t.Parallel()

	payloads := []string{
		`not json hunter2`,
		`["hunter2"]`,
		`{"A":"hunter2"} {"B":"2"}`,
	}

	for _, payload := range payloads {
		payload := payload
		t.Run(payload, func(t *testing.T) {
			t.Parallel()

			logger, logs := observedLogger()
			l := loaders.NewAWSSecretLoader(
				loaders.WithSecretsManagerClient(&fakeSecretsManager{output: secretString(payload)}),
				loaders.WithEnvLookup(envMap(nil)),
				loaders.WithLogger(logger),
			)

			ok := l.LoadValues(context.Background(), loader.NewOptions(
				loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
			))

			assert.False(t, ok)
			assert.Empty(t, l.GetValues())
			for _, entry := range logs.AllUntimed() {
				assert.NotContains(t, entry.Message, "hunter2", "payload leaked into logs")
			}
		})
	}
}

// The tests below share the process-wide aws.sdk channel and stay
// sequential.

func TestAWSSecretLoaderRedactsDuringFetch(t *testing.T) {
	core, sdkLogs := observer.New(zapcore.DebugLevel)
	channel := logging.GetChannel(logging.ChannelAWSSDK)
	channel.SetOutput(logging.NewFromCore(core))
	defer channel.SetOutput(nil)

	before := filterCount(t, logging.ChannelAWSSDK)
	var during int
	client := &fakeSecretsManager{
		output: secretString(`{"PASSWORD":"hunter2"}`),
		during: func() {
			during = filterCount(t, logging.ChannelAWSSDK)
			channel.SmithyLogger().Logf(smithylogging.Debug, "Response\n%s", `{"SecretString":"{\"PASSWORD\":\"hunter2\"}"}`)
		},
	}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logging.Nop()),
	)

	require.True(t, l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
	)))

	assert.Equal(t, before+1, during, "filter must be installed during the request")
	assert.Equal(t, before, filterCount(t, logging.ChannelAWSSDK), "filter must be removed afterwards")

	entries := sdkLogs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "Response\nREDACTED", entries[0].Message)

	// Outside the load the channel is unfiltered again.
	channel.Logf(zapcore.DebugLevel, "Response\n%s", "visible")
	entries = sdkLogs.AllUntimed()
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[1].Message, "visible"))
}

func TestAWSSecretLoaderReleasesFilterOnPanic(t *testing.T) {
	before := filterCount(t, logging.ChannelAWSSDK)
	client := &fakeSecretsManager{during: func() { panic("transport exploded") }}
	l := loaders.NewAWSSecretLoader(
		loaders.WithSecretsManagerClient(client),
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logging.Nop()),
	)

	assert.Panics(t, func() {
		l.LoadValues(context.Background(), loader.NewOptions(
			loader.OptAWSStoreName, "s", loader.OptAWSRegionName, "us-east-1",
		))
	})
	assert.Equal(t, before, filterCount(t, logging.ChannelAWSSDK))
}

func TestAWSSecretLoaderRedactsSDKWireLogs(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_, _ = io.WriteString(w, `{"ARN":"arn:aws:secretsmanager:us-east-1:123456789012:secret:s","Name":"s","SecretString":"{\"PASSWORD\":\"hunter2\"}","VersionId":"v1"}`)
	}))
	defer server.Close()

	core, sdkLogs := observer.New(zapcore.DebugLevel)
	channel := logging.GetChannel(logging.ChannelAWSSDK)
	channel.SetOutput(logging.NewFromCore(core))
	defer channel.SetOutput(nil)

	logger, _ := observedLogger()
	l := loaders.NewAWSSecretLoader(
		loaders.WithEnvLookup(envMap(nil)),
		loaders.WithLogger(logger),
	)

	require.True(t, l.LoadValues(context.Background(), loader.NewOptions(
		loader.OptAWSStoreName, "s",
		loader.OptAWSRegionName, "us-east-1",
		loader.OptAWSEndpointURL, server.URL,
		loader.OptAWSAccessKeyID, "AKIDEXAMPLE",
		loader.OptAWSSecretAccessKey, "wJalrXUtnFEMI",
	)))
	assert.Equal(t, map[string]string{"PASSWORD": "hunter2"}, l.GetValues())

	entries := sdkLogs.AllUntimed()
	require.NotEmpty(t, entries, "debug logging must reach the aws.sdk channel")
	for _, entry := range entries {
		assert.NotContains(t, entry.Message, "hunter2", "secret leaked into SDK logs")
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "hunter2")
		}
	}
}
