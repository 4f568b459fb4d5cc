package loaders

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// EnvFileName is the type identifier of EnvFileLoader.
const EnvFileName = "envfile"

// DefaultEnvFile is read when no file name is configured.
const DefaultEnvFile = ".env"

// EnvFileLoader loads KEY=value pairs from a dotenv file.
type EnvFileLoader struct {
	loader.Values

	lookupEnv loader.LookupFunc
	logger    *logging.Logger
}

// NewEnvFileLoader creates a dotenv file loader.
func NewEnvFileLoader(opts ...Option) *EnvFileLoader {
	s := newSettings(opts)
	return &EnvFileLoader{
		lookupEnv: s.lookupEnv,
		logger:    s.logger.Named(EnvFileName),
	}
}

// Name returns "envfile".
func (l *EnvFileLoader) Name() string {
	return EnvFileName
}

// LoadValues parses the file named by the filename option (or
// SECRETBOX_ENV_FILE, then ".env") and merges its pairs into the mapping.
// The process environment is not modified.
func (l *EnvFileLoader) LoadValues(_ context.Context, opts loader.Options) bool {
	filename, _ := opts.ResolveEnv(loader.OptFilename, l.lookupEnv)
	if filename == "" {
		filename = DefaultEnvFile
	}

	values, err := godotenv.Read(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Error("Env file %s not found: %v", filename, loader.ErrConfigurationMissing)
		} else {
			// godotenv errors can quote file content.
			l.logger.Error("Env file %s could not be parsed: %v", filename, loader.ErrMalformedPayload)
		}
		return false
	}

	l.Update(values)
	l.logger.Debug("Loaded %d values from %s", len(values), filename)
	return len(values) > 0
}
