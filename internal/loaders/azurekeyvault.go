package loaders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	azlog "github.com/Azure/azure-sdk-for-go/sdk/azcore/log"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"go.uber.org/zap/zapcore"
)

// AzureKeyVaultName is the type identifier of AzureKeyVaultLoader.
const AzureKeyVaultName = "azurekeyvault"

// AzureSecretClient defines the Key Vault operation the loader needs.
// This allows for mocking in tests
type AzureSecretClient interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureSecretFactory builds a Key Vault client for vaultURL.
type AzureSecretFactory func(vaultURL string) (AzureSecretClient, error)

var azureListenerOnce sync.Once

// routeAzureLogs sends azcore's process-wide log output to the azure.sdk
// channel. Request and response dumps carry the markers SecretsFilter looks
// for.
func routeAzureLogs() {
	azureListenerOnce.Do(func() {
		channel := logging.GetChannel(logging.ChannelAzureSDK)
		azlog.SetListener(func(event azlog.Event, msg string) {
			format := "%s"
			switch event {
			case azlog.EventRequest:
				format = "Request %s"
			case azlog.EventResponse:
				format = "Response %s"
			}
			channel.Log(logging.Record{
				Level:   zapcore.DebugLevel,
				Message: format,
				Args:    []interface{}{msg},
				Fields:  map[string]interface{}{"event": string(event)},
			})
		})
	})
}

// NewAzureSecretClient builds a real Key Vault client authenticated with
// DefaultAzureCredential.
func NewAzureSecretClient(vaultURL string) (AzureSecretClient, error) {
	routeAzureLogs()

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", loader.ErrCredentialsMissing, err)
	}
	return azsecrets.NewClient(vaultURL, cred, nil)
}

// AzureKeyVaultLoader loads a JSON object stored as one Key Vault secret.
type AzureKeyVaultLoader struct {
	loader.Values

	factory   AzureSecretFactory
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
	channel   *logging.Channel
}

// NewAzureKeyVaultLoader creates an Azure Key Vault loader.
func NewAzureKeyVaultLoader(opts ...Option) *AzureKeyVaultLoader {
	s := newSettings(opts)
	return &AzureKeyVaultLoader{
		factory:   s.azure,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(AzureKeyVaultName),
		channel:   logging.GetChannel(logging.ChannelAzureSDK),
	}
}

// Name returns "azurekeyvault".
func (l *AzureKeyVaultLoader) Name() string {
	return AzureKeyVaultName
}

// LoadValues reads the configured secret and merges its fields into the
// mapping.
func (l *AzureKeyVaultLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
	if l.factory == nil {
		l.logger.Error("Azure Key Vault support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}

	vaultURL, _ := opts.ResolveEnv(loader.OptAzureVaultURL, l.lookupEnv)
	if vaultURL == "" {
		l.logger.Error("No vault URL given: set %s or AZURE_KEYVAULT_URL", loader.OptAzureVaultURL)
		return false
	}
	if u, err := url.Parse(vaultURL); err != nil || u.Scheme == "" || u.Host == "" {
		l.logger.Error("Invalid vault URL %q: use https://vault-name.vault.azure.net/", vaultURL)
		return false
	}
	secretName, _ := opts.ResolveEnv(loader.OptAzureSecretName, l.lookupEnv)
	if secretName == "" {
		l.logger.Error("No secret name given: set %s or AZURE_SECRET_NAME", loader.OptAzureSecretName)
		return false
	}

	client, err := l.factory(vaultURL)
	if err != nil {
		logProviderError(l.logger, classifyAzureError(err))
		return false
	}

	secrets, err := l.fetch(ctx, client, secretName, opts.Get(loader.OptAzureSecretVersion))
	if err != nil {
		var pe *loader.ProviderError
		if errors.As(err, &pe) {
			logProviderError(l.logger, pe)
		} else {
			l.logger.Error("Secret %q could not be decoded: %v", secretName, err)
		}
		return false
	}

	l.Update(secrets)
	l.logger.Debug("Loaded %d values from secret %q", len(secrets), secretName)
	return len(secrets) > 0
}

func (l *AzureKeyVaultLoader) fetch(ctx context.Context, client AzureSecretClient, name, version string) (map[string]string, error) {
	release := l.channel.Install(logging.SecretsFilter)
	defer release()

	resp, err := client.GetSecret(ctx, name, version, nil)
	if err != nil {
		return nil, classifyAzureError(err)
	}
	if resp.Value == nil {
		return map[string]string{}, nil
	}
	return decodePayloadString(*resp.Value)
}

func classifyAzureError(err error) *loader.ProviderError {
	pe := &loader.ProviderError{Loader: AzureKeyVaultName, Kind: loader.ErrProviderRejected, Err: err}

	var authErr *azidentity.AuthenticationFailedError
	if errors.Is(err, loader.ErrCredentialsMissing) || errors.As(err, &authErr) ||
		strings.Contains(err.Error(), "failed to acquire a token") {
		pe.Kind = loader.ErrCredentialsMissing
		return pe
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		pe.Code = respErr.ErrorCode
		pe.Message = fmt.Sprintf("HTTP %d", respErr.StatusCode)
		pe.Metadata = map[string]string{"HTTPStatusCode": strconv.Itoa(respErr.StatusCode)}
		if respErr.RawResponse != nil {
			if id := respErr.RawResponse.Header.Get("x-ms-request-id"); id != "" {
				pe.Metadata["RequestID"] = id
			}
		}
	}
	return pe
}
