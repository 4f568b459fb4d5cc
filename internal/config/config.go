package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "secretbox.yaml"

//go:embed schema.json
var schema []byte

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger
	// Explicit marks Path as requested by the user; a missing explicit file
	// is an error, a missing default file is not.
	Explicit   bool
	Definition *Definition
}

// Definition represents the secretbox.yaml structure
type Definition struct {
	Version    int               `yaml:"version"`
	RequireAll *bool             `yaml:"require_all,omitempty"`
	Loaders    []string          `yaml:"loaders,omitempty"`
	Options    map[string]string `yaml:"options,omitempty"`
}

// Load reads, parses and validates the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if !c.Explicit {
				c.logger().Debug("No configuration file at %s, using defaults", c.Path)
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create the file or drop --config to use the defaults",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	return c.parse(data)
}

func (c *Config) parse(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	// Validate version
	if m, ok := doc.(map[string]interface{}); ok {
		if version, ok := m["version"]; ok && version != 0 {
			return dserrors.ConfigError{
				Field:      "version",
				Value:      version,
				Message:    "unsupported configuration version",
				Suggestion: "Set 'version: 0' at the top of your secretbox.yaml file",
			}
		}
	}

	if err := validateSchema(doc); err != nil {
		return dserrors.ConfigError{
			Message:    err.Error(),
			Suggestion: "Only version, require_all, loaders and options are allowed at the top level",
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("cannot decode configuration: %v", err),
			Suggestion: "Option values must be plain scalars",
		}
	}

	c.Definition = &def
	return nil
}

func validateSchema(doc interface{}) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	return nil
}

// CheckLoaders reports the first configured loader type isSupported rejects.
func (c *Config) CheckLoaders(isSupported func(string) bool) error {
	for i, name := range c.LoaderTypes() {
		if !isSupported(name) {
			return dserrors.ConfigError{
				Field:      fmt.Sprintf("loaders[%d]", i),
				Value:      name,
				Message:    "unknown loader type",
				Suggestion: "Run 'secretbox loaders' to list supported types",
			}
		}
	}
	return nil
}

// LoaderTypes returns the configured loader sequence, nil when unset.
func (c *Config) LoaderTypes() []string {
	if c.Definition == nil || len(c.Definition.Loaders) == 0 {
		return nil
	}
	return append([]string(nil), c.Definition.Loaders...)
}

// RequireAll returns the configured success policy, true when unset.
func (c *Config) RequireAll() bool {
	if c.Definition == nil || c.Definition.RequireAll == nil {
		return true
	}
	return *c.Definition.RequireAll
}

// LoaderOptions returns the configured loader options as a fresh set.
func (c *Config) LoaderOptions() loader.Options {
	opts := make(loader.Options)
	if c.Definition != nil {
		for key, value := range c.Definition.Options {
			opts[key] = value
		}
	}
	return opts
}

func (c *Config) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Default()
}
