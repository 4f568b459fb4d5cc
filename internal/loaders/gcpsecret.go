package loaders

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretName is the type identifier of GCPSecretLoader.
const GCPSecretName = "gcpsecret"

// GCPSecretClient is the part of the Secret Manager client the loader uses.
type GCPSecretClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// GCPSecretFactory builds a Secret Manager client. credentialsFile may be
// empty to use Application Default Credentials.
type GCPSecretFactory func(ctx context.Context, credentialsFile string) (GCPSecretClient, error)

// NewGCPSecretClient builds a real Secret Manager client.
func NewGCPSecretClient(ctx context.Context, credentialsFile string) (GCPSecretClient, error) {
	var clientOptions []option.ClientOption
	if credentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credentialsFile))
	}
	return secretmanager.NewClient(ctx, clientOptions...)
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// GCPSecretLoader loads a JSON object stored as one Secret Manager secret
// version.
type GCPSecretLoader struct {
	loader.Values

	factory   GCPSecretFactory
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
}

// NewGCPSecretLoader creates a GCP Secret Manager loader.
func NewGCPSecretLoader(opts ...Option) *GCPSecretLoader {
	s := newSettings(opts)
	return &GCPSecretLoader{
		factory:   s.gcp,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(GCPSecretName),
	}
}

// Name returns "gcpsecret".
func (l *GCPSecretLoader) Name() string {
	return GCPSecretName
}

// LoadValues accesses the configured secret version and merges its fields
// into the mapping.
func (l *GCPSecretLoader) LoadValues(ctx context.Context, opts loader.Options) bool {
	if l.factory == nil {
		l.logger.Error("GCP Secret Manager support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}

	resourceName, err := l.resourceName(opts)
	if err != nil {
		l.logger.Error("%v", err)
		return false
	}

	client, err := l.factory(ctx, opts.Get(loader.OptGCPCredentialsFile))
	if err != nil {
		logProviderError(l.logger, classifyGCPError(err))
		return false
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			l.logger.Debug("Closing Secret Manager client: %v", cerr)
		}
	}()

	l.logger.Debug("Accessing GCP secret: %s", resourceName)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		logProviderError(l.logger, classifyGCPError(err))
		return false
	}

	secrets, err := decodeGCPPayload(resp.GetPayload())
	if err != nil {
		l.logger.Error("Secret %q could not be decoded: %v", resourceName, err)
		return false
	}

	l.Update(secrets)
	l.logger.Debug("Loaded %d values from %s", len(secrets), resourceName)
	return len(secrets) > 0
}

// resourceName builds projects/P/secrets/S/versions/V. A secret name that is
// already a full resource path is used as given.
func (l *GCPSecretLoader) resourceName(opts loader.Options) (string, error) {
	secretName, _ := opts.ResolveEnv(loader.OptGCPSecretName, l.lookupEnv)
	if secretName == "" {
		return "", fmt.Errorf("%w: no secret name: set %s or GCP_SECRET_NAME", loader.ErrConfigurationMissing, loader.OptGCPSecretName)
	}

	version := opts.Get(loader.OptGCPSecretVersion)
	if version == "" {
		version = "latest"
	}

	if strings.HasPrefix(secretName, "projects/") {
		if strings.Contains(secretName, "/versions/") {
			return secretName, nil
		}
		return secretName + "/versions/" + version, nil
	}

	projectID, _ := opts.ResolveEnv(loader.OptGCPProjectID, l.lookupEnv)
	if projectID == "" {
		return "", fmt.Errorf("%w: no project: set %s or GOOGLE_CLOUD_PROJECT", loader.ErrConfigurationMissing, loader.OptGCPProjectID)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, secretName, version), nil
}

// decodeGCPPayload verifies the payload checksum when the service sent one
// and decodes the JSON object.
func decodeGCPPayload(payload *secretmanagerpb.SecretPayload) (map[string]string, error) {
	if payload == nil {
		return map[string]string{}, nil
	}
	data := payload.GetData()
	if payload.DataCrc32C != nil && int64(crc32.Checksum(data, crc32c)) != payload.GetDataCrc32C() {
		return nil, fmt.Errorf("%w: checksum mismatch", loader.ErrMalformedPayload)
	}
	return decodePayload(data)
}

func classifyGCPError(err error) *loader.ProviderError {
	pe := &loader.ProviderError{Loader: GCPSecretName, Kind: loader.ErrProviderRejected, Err: err}

	if errors.Is(err, loader.ErrCredentialsMissing) || strings.Contains(err.Error(), "could not find default credentials") {
		pe.Kind = loader.ErrCredentialsMissing
		return pe
	}

	if st, ok := status.FromError(err); ok {
		pe.Code = st.Code().String()
		pe.Message = st.Message()
		pe.Metadata = map[string]string{"grpc_code": fmt.Sprintf("%d", st.Code())}
		if st.Code() == codes.Unauthenticated {
			pe.Kind = loader.ErrCredentialsMissing
		}
	}
	return pe
}
