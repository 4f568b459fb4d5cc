package loaders

import (
	"context"
	"strings"

	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// EnvironName is the type identifier of EnvironLoader.
const EnvironName = "environ"

// EnvironLoader snapshots the process environment.
type EnvironLoader struct {
	loader.Values

	environ func() []string
	logger  *logging.Logger
}

// NewEnvironLoader creates an environment loader.
func NewEnvironLoader(opts ...Option) *EnvironLoader {
	s := newSettings(opts)
	return &EnvironLoader{
		environ: s.environ,
		logger:  s.logger.Named(EnvironName),
	}
}

// Name returns "environ".
func (l *EnvironLoader) Name() string {
	return EnvironName
}

// LoadValues replaces the mapping with the current environment. Options are
// ignored. It always reports true, even for an empty environment.
func (l *EnvironLoader) LoadValues(_ context.Context, _ loader.Options) bool {
	l.ResetValues()

	values := make(map[string]string)
	for _, kv := range l.environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			// Windows keeps per-drive cwd entries such as "=C:=C:\"
			continue
		}
		values[key] = value
	}
	l.Update(values)

	l.logger.Debug("Loaded %d environment variables", len(values))
	return true
}
