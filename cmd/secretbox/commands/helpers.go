package commands

import (
	"context"
	"os"
	"strings"

	"github.com/systmms/secretbox/internal/config"
	dserrors "github.com/systmms/secretbox/internal/errors"
	"github.com/systmms/secretbox/internal/loaders"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/internal/metrics"
	"github.com/systmms/secretbox/pkg/loader"
	"github.com/systmms/secretbox/pkg/secretbox"
)

// Globals holds the state shared by every command: the configuration file
// and the global flags that override it.
type Globals struct {
	Config *config.Config

	Loaders         []string
	Options         map[string]string
	RequireAll      *bool
	MetricsTextfile string

	// LoaderOptions are passed to every loader the registry creates.
	LoaderOptions []loaders.Option

	// LookupEnv and STSFactory are used by doctor.
	LookupEnv  loader.LookupFunc
	STSFactory loaders.STSFactory
}

// NewGlobals returns Globals reading the default configuration file.
func NewGlobals() *Globals {
	return &Globals{
		Config:     &config.Config{Path: config.DefaultPath},
		LookupEnv:  os.LookupEnv,
		STSFactory: loaders.NewSTSClient,
	}
}

// ParseOptions turns repeated key=value flags into a map. Only the first
// "=" separates key from value, so values may contain "=" and ",".
func ParseOptions(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, dserrors.UserError{
				Message:    "invalid --option " + kv,
				Suggestion: "Use --option key=value, for example --option filename=.env.local",
			}
		}
		opts[key] = value
	}
	return opts, nil
}

func (g *Globals) logger() *logging.Logger {
	if g.Config != nil && g.Config.Logger != nil {
		return g.Config.Logger
	}
	return logging.Default()
}

// session is one configured Box plus the options it loads with.
type session struct {
	g          *Globals
	registry   *loaders.Registry
	types      []string
	box        *secretbox.Box
	opts       loader.Options
	metrics    *metrics.LoadMetrics
	requireAll bool
}

func newSession(g *Globals) (*session, error) {
	if err := g.Config.Load(); err != nil {
		return nil, err
	}

	logger := g.logger()
	registry := loaders.NewRegistry(append([]loaders.Option{loaders.WithLogger(logger)}, g.LoaderOptions...)...)

	types := g.Loaders
	if len(types) == 0 {
		if err := g.Config.CheckLoaders(registry.IsSupported); err != nil {
			return nil, err
		}
		types = g.Config.LoaderTypes()
	}
	if len(types) == 0 {
		types = []string{loaders.EnvironName}
	}

	ls, err := registry.CreateAll(types)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    err.Error(),
			Suggestion: "Run 'secretbox loaders' to list supported types",
			Err:        err,
		}
	}

	requireAll := g.Config.RequireAll()
	if g.RequireAll != nil {
		requireAll = *g.RequireAll
	}

	m := metrics.New()
	return &session{
		g:        g,
		registry: registry,
		types:    types,
		box: secretbox.New(
			secretbox.WithLoaders(ls...),
			secretbox.WithRequireAll(requireAll),
			secretbox.WithLogger(logger),
			secretbox.WithMetrics(m),
		),
		opts:       g.Config.LoaderOptions().Merge(loader.Options(g.Options)),
		metrics:    m,
		requireAll: requireAll,
	}, nil
}

// load runs every loader and turns a failed policy into a user error.
func (s *session) load(ctx context.Context) error {
	ok := s.box.LoadAll(ctx, s.opts)

	if s.g.MetricsTextfile != "" {
		if err := s.metrics.WriteTextfile(s.g.MetricsTextfile); err != nil {
			s.g.logger().Warn("Could not write metrics to %s: %v", s.g.MetricsTextfile, err)
		}
	}

	if !ok {
		var failed []string
		for _, r := range s.box.Results() {
			if !r.OK {
				failed = append(failed, r.Loader)
			}
		}
		return dserrors.LoadFailure(failed)
	}
	return nil
}
