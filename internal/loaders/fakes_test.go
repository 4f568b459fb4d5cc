package loaders_test

import (
	"context"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/googleapis/gax-go/v2"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// envMap is a LookupFunc over a fixed map, so tests never touch the process
// environment.
func envMap(env map[string]string) loader.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

// observedLogger returns a debug logger writing to an observer.
func observedLogger() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewFromCore(core), logs
}

// messages flattens observed log messages at or above level.
func messages(logs *observer.ObservedLogs, level zapcore.Level) []string {
	var out []string
	for _, entry := range logs.AllUntimed() {
		if entry.Level >= level {
			out = append(out, entry.Message)
		}
	}
	return out
}

// fakeSecretsManager serves GetSecretValue from a canned response.
type fakeSecretsManager struct {
	mu     sync.Mutex
	calls  []string
	output *secretsmanager.GetSecretValueOutput
	err    error
	during func()
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	if params.SecretId != nil {
		f.calls = append(f.calls, *params.SecretId)
	}
	f.mu.Unlock()

	if f.during != nil {
		f.during()
	}
	return f.output, f.err
}

func (f *fakeSecretsManager) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSSM serves GetParametersByPath from a list of pages.
type fakeSSM struct {
	mu     sync.Mutex
	pages  []*ssm.GetParametersByPathOutput
	inputs []ssm.GetParametersByPathInput
	err    error
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, params *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, *params)
	if f.err != nil {
		return nil, f.err
	}
	page := len(f.inputs) - 1
	if page >= len(f.pages) {
		return &ssm.GetParametersByPathOutput{}, nil
	}
	return f.pages[page], nil
}

// fakeGCPSecrets serves AccessSecretVersion from a map of resource names.
type fakeGCPSecrets struct {
	mu       sync.Mutex
	payloads map[string]*secretmanagerpb.SecretPayload
	err      error
	requests []string
	closed   bool
}

func (f *fakeGCPSecrets) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req.GetName())
	if f.err != nil {
		return nil, f.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: f.payloads[req.GetName()],
	}, nil
}

func (f *fakeGCPSecrets) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeAzureSecrets serves GetSecret from a map of secret names.
type fakeAzureSecrets struct {
	values map[string]string
	err    error
}

func (f *fakeAzureSecrets) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if f.err != nil {
		return azsecrets.GetSecretResponse{}, f.err
	}
	var resp azsecrets.GetSecretResponse
	if value, ok := f.values[name]; ok {
		resp.Value = &value
	}
	return resp, nil
}

// filterCount reports the installed filters on a channel, for tests that
// run sequentially.
func filterCount(t *testing.T, name string) int {
	t.Helper()
	return logging.GetChannel(name).FilterCount()
}
