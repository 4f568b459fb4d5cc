package loaders

import (
	"context"
	"errors"

	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"github.com/zalando/go-keyring"
)

// KeyringName is the type identifier of KeyringLoader.
const KeyringName = "keyring"

// DefaultKeyringService is the keyring service used when none is configured.
const DefaultKeyringService = "secretbox"

// KeyringGetFunc reads one item from the OS keyring.
type KeyringGetFunc func(service, account string) (string, error)

func keyringGet(service, account string) (string, error) {
	return keyring.Get(service, account)
}

// KeyringLoader loads a JSON object stored as one OS keyring item (macOS
// Keychain, Secret Service on Linux, Windows Credential Manager).
type KeyringLoader struct {
	loader.Values

	get       KeyringGetFunc
	lookupEnv loader.LookupFunc
	logger    *logging.Logger
}

// NewKeyringLoader creates an OS keyring loader.
func NewKeyringLoader(opts ...Option) *KeyringLoader {
	s := newSettings(opts)
	return &KeyringLoader{
		get:       s.keyringGet,
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(KeyringName),
	}
}

// Name returns "keyring".
func (l *KeyringLoader) Name() string {
	return KeyringName
}

// LoadValues reads the item for keyring_account under keyring_service and
// merges its fields into the mapping.
func (l *KeyringLoader) LoadValues(_ context.Context, opts loader.Options) bool {
	if l.get == nil {
		l.logger.Error("Keyring support is not available: %v", loader.ErrDependencyUnavailable)
		return false
	}

	service, _ := opts.ResolveEnv(loader.OptKeyringService, l.lookupEnv)
	if service == "" {
		service = DefaultKeyringService
	}
	account, _ := opts.ResolveEnv(loader.OptKeyringAccount, l.lookupEnv)
	if account == "" {
		l.logger.Error("No keyring account given: set %s or SECRETBOX_KEYRING_ACCOUNT", loader.OptKeyringAccount)
		return false
	}

	blob, err := l.get(service, account)
	if err != nil {
		pe := &loader.ProviderError{Loader: KeyringName, Kind: loader.ErrProviderRejected, Err: err}
		if errors.Is(err, keyring.ErrNotFound) {
			pe.Code = "NotFound"
			pe.Message = "no keyring item for " + service + "/" + account
		}
		logProviderError(l.logger, pe)
		return false
	}

	secrets, err := decodePayloadString(blob)
	if err != nil {
		l.logger.Error("Keyring item %s/%s could not be decoded: %v", service, account, err)
		return false
	}

	l.Update(secrets)
	l.logger.Debug("Loaded %d values from keyring item %s/%s", len(secrets), service, account)
	return len(secrets) > 0
}
