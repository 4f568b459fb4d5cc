package loaders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// AkeylessName is the type identifier of AkeylessLoader.
const AkeylessName = "akeyless"

// DefaultAkeylessGateway is the public Akeyless API endpoint.
const DefaultAkeylessGateway = "https://api.akeyless.io"

// AkeylessClientConfig describes how to reach and authenticate to Akeyless.
type AkeylessClientConfig struct {
	GatewayURL string
	AccessID   string
	AccessKey  string
}

// AkeylessAPI is the part of the Akeyless API the loader uses.
type AkeylessAPI interface {
	// Authenticate exchanges the configured access id and key for a token.
	Authenticate(ctx context.Context) (string, error)

	// GetSecretValue returns the value stored at path.
	GetSecretValue(ctx context.Context, token, path string) (string, error)
}

// AkeylessFactory builds an Akeyless client.
type AkeylessFactory func(ctx context.Context, cfg AkeylessClientConfig) (AkeylessAPI, error)

// NewAkeylessClient builds a client backed by the Akeyless SDK using API key
// authentication.
func NewAkeylessClient(_ context.Context, cfg AkeylessClientConfig) (AkeylessAPI, error) {
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("%w: no Akeyless access key", loader.ErrCredentialsMissing)
	}

	configuration := akeyless.NewConfiguration()
	configuration.Servers = []akeyless.ServerConfiguration{
		{URL: cfg.GatewayURL},
	}

	return &akeylessSDKClient{
		api: akeyless.NewAPIClient(configuration),
		cfg: cfg,
	}, nil
}

type akeylessSDKClient struct {
	api *akeyless.APIClient
	cfg AkeylessClientConfig
}

func (c *akeylessSDKClient) Authenticate(ctx context.Context) (string, error) {
	body := akeyless.NewAuthWithDefaults()
	body.SetAccessId(c.cfg.AccessID)
	body.SetAccessKey(c.cfg.AccessKey)

	out, resp, err := c.api.V2Api.Auth(ctx).Body(*body).Execute()
	if err != nil {
		return "", akeylessResponseError(resp, err)
	}
	return out.GetToken(), nil
}

func (c *akeylessSDKClient) GetSecretValue(ctx context.Context, token, path string) (string, error) {
	body := akeyless.NewGetSecretValue([]string{path})
	body.SetToken(token)

	out, resp, err := c.api.V2Api.GetSecretValue(ctx).Body(*body).Execute()
	if err != nil {
		return "", akeylessResponseError(resp, err)
	}

	// The response maps each requested path to its value.
	value, ok := out[path]
	if !ok {
		return "", &loader.ProviderError{
			Loader:  AkeylessName,
			Kind:    loader.ErrProviderRejected,
			Code:    "itemNotFound",
			Message: "no secret at " + path,
		}
	}
	return akeylessString(value)
}

// akeylessString returns a secret value as text. Structured values are
// re-encoded as JSON so the payload decoder sees the object.
func akeylessString(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: unexpected value type %T", loader.ErrMalformedPayload, value)
	}
	return string(b), nil
}

func akeylessResponseError(resp *http.Response, err error) *loader.ProviderError {
	pe := &loader.ProviderError{Loader: AkeylessName, Kind: loader.ErrProviderRejected, Err: err}
	if resp != nil {
		pe.Metadata = map[string]string{"HTTPStatusCode": strconv.Itoa(resp.StatusCode)}
		if resp.StatusCode == http.StatusNotFound || strings.Contains(err.Error(), "itemNotFound") {
			pe.Code = "itemNotFound"
			pe.Message = err.Error()
		}
	}
	return pe
}

// classifyAkeylessError turns a client error into a ProviderError.
func classifyAkeylessError(err error) *loader.ProviderError {
	var pe *loader.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	pe = &loader.ProviderError{Loader: AkeylessName, Kind: loader.ErrProviderRejected, Err: err}
	if errors.Is(err, loader.ErrCredentialsMissing) {
		pe.Kind = loader.ErrCredentialsMissing
	}
	return pe
}

// AkeylessLoader loads a JSON object stored as one Akeyless static secret.
// Values accumulate across calls until ResetValues.
type AkeylessLoader struct {
	loader.Values

	factory   AkeylessFactory
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
}

// NewAkeylessLoader creates an Akeyless loader.
func NewAkeylessLoader(opts ...Option) *AkeylessLoader {
	s := newSettings(opts)
	return &AkeylessLoader{
		factory:   s.akeyless,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(AkeylessName),
	}
}

// Name returns "akeyless".
func (l *AkeylessLoader) Name() string {
	return AkeylessName
}

// LoadValues authenticates with akeyless_access_id and akeyless_access_key,
// reads the secret at akeyless_secret_path and merges its fields into the
// mapping.
func (l *AkeylessLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
	if l.factory == nil {
		l.logger.Error("Akeyless support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}

	path, _ := opts.ResolveEnv(loader.OptAkeylessSecretPath, l.lookupEnv)
	if path == "" {
		l.logger.Error("No Akeyless secret path given: set %s or AKEYLESS_SECRET_PATH", loader.OptAkeylessSecretPath)
		return false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var cfg AkeylessClientConfig
	cfg.AccessID, _ = opts.ResolveEnv(loader.OptAkeylessAccessID, l.lookupEnv)
	if cfg.AccessID == "" {
		l.logger.Error("No Akeyless access id given: set %s or AKEYLESS_ACCESS_ID", loader.OptAkeylessAccessID)
		return false
	}
	cfg.AccessKey, _ = opts.ResolveEnv(loader.OptAkeylessAccessKey, l.lookupEnv)
	cfg.GatewayURL, _ = opts.ResolveEnv(loader.OptAkeylessGatewayURL, l.lookupEnv)
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultAkeylessGateway
	}

	client, err := l.factory(ctx, cfg)
	if err != nil {
		logProviderError(l.logger, classifyAkeylessError(err))
		return false
	}

	token, err := client.Authenticate(ctx)
	if err != nil {
		logProviderError(l.logger, classifyAkeylessError(err))
		return false
	}

	blob, err := client.GetSecretValue(ctx, token, path)
	if err != nil {
		logProviderError(l.logger, classifyAkeylessError(err))
		return false
	}

	secrets, err := decodePayloadString(blob)
	if err != nil {
		l.logger.Error("Secret %q could not be decoded: %v", path, err)
		return false
	}

	l.Update(secrets)
	l.logger.Debug("Loaded %d values from Akeyless secret %q", len(secrets), path)
	return len(secrets) > 0
}
