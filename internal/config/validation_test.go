package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "secretbox.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestConfig_Validation_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	config := &Config{
		Path:     "/nonexistent/path/to/secretbox.yaml",
		Logger:   logging.New(false, false),
		Explicit: true,
	}

	err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")

	var configErr dserrors.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Parallel()

	config := &Config{
		Path:   filepath.Join(t.TempDir(), DefaultPath),
		Logger: logging.Nop(),
	}

	require.NoError(t, config.Load())
	require.NotNil(t, config.Definition)
	assert.Nil(t, config.LoaderTypes())
	assert.True(t, config.RequireAll())
	assert.Empty(t, config.LoaderOptions())
}

func TestConfig_Validation_InvalidYAML(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, `version: 0
loaders:
  - environ
  bad syntax here [[[
`)

	config := &Config{Path: configPath, Logger: logging.Nop()}

	err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestConfig_Validation_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "version: 2\nloaders: [environ]\n")

	config := &Config{Path: configPath, Logger: logging.Nop()}

	err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
	assert.Contains(t, err.Error(), "version: 0")
}

func TestConfig_Validation_Schema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown_top_level_key",
			content: "version: 0\nproviders: {}\n",
			wantErr: "schema validation failed",
		},
		{
			name:    "loaders_not_a_list",
			content: "version: 0\nloaders: environ\n",
			wantErr: "schema validation failed",
		},
		{
			name:    "bad_loader_name",
			content: "version: 0\nloaders: [\"AWS Secret\"]\n",
			wantErr: "schema validation failed",
		},
		{
			name:    "nested_option_value",
			content: "version: 0\noptions:\n  aws_sstore_name:\n    nested: true\n",
			wantErr: "schema validation failed",
		},
		{
			name:    "require_all_not_bool",
			content: "version: 0\nrequire_all: sometimes\n",
			wantErr: "schema validation failed",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := &Config{Path: writeConfig(t, tt.content), Logger: logging.Nop()}

			err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, config.Definition)
		})
	}
}

func TestConfig_LoadFullDefinition(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, `version: 0
require_all: false
loaders: [envfile, environ, awssecret]
options:
  aws_sstore_name: prod/app
  aws_region_name: us-east-1
  filename: .env.local
`)

	config := &Config{Path: configPath, Logger: logging.Nop()}
	require.NoError(t, config.Load())

	assert.Equal(t, []string{"envfile", "environ", "awssecret"}, config.LoaderTypes())
	assert.False(t, config.RequireAll())

	opts := config.LoaderOptions()
	assert.Equal(t, "prod/app", opts.Get("aws_sstore_name"))
	assert.Equal(t, "us-east-1", opts.Get("aws_region_name"))
	assert.Equal(t, ".env.local", opts.Get("filename"))
}

func TestConfig_EmptyFile(t *testing.T) {
	t.Parallel()

	config := &Config{Path: writeConfig(t, ""), Logger: logging.Nop()}

	require.NoError(t, config.Load())
	assert.True(t, config.RequireAll())
	assert.Nil(t, config.LoaderTypes())
}

func TestConfig_LoaderOptionsIsCopy(t *testing.T) {
	t.Parallel()

	config := &Config{Definition: &Definition{Options: map[string]string{"filename": "a.env"}}}

	opts := config.LoaderOptions()
	opts["filename"] = "b.env"

	assert.Equal(t, "a.env", config.Definition.Options["filename"])
}

func TestConfig_CheckLoaders(t *testing.T) {
	t.Parallel()

	supported := func(name string) bool { return name == "environ" || name == "envfile" }

	ok := &Config{Definition: &Definition{Loaders: []string{"envfile", "environ"}}}
	assert.NoError(t, ok.CheckLoaders(supported))

	bad := &Config{Definition: &Definition{Loaders: []string{"environ", "vault"}}}
	err := bad.CheckLoaders(supported)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loaders[1]")
	assert.Contains(t, err.Error(), "vault")
}
