// Package secretbox merges the values of several loaders into one view and
// can promote that view into the process environment.
//
// Loaders run in order on every LoadAll; when two loaders hold the same key
// the one that ran later wins. The default sequence is a single environ
// loader, so an unconfigured Box simply mirrors the environment.
//
// Example:
//
//	box := secretbox.New(secretbox.WithLoaders(
//	    loaders.NewEnvironLoader(),
//	    loaders.NewAWSSecretLoader(),
//	))
//	if !box.LoadAll(ctx, loader.NewOptions(loader.OptAWSStoreName, "prod/app")) {
//	    log.Fatal("secrets incomplete")
//	}
//	dsn := box.Get("DATABASE_URL", "")
package secretbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/systmms/secretbox/internal/loaders"
	"github.com/systmms/secretbox/internal/logging"
	"github.com/systmms/secretbox/pkg/loader"
)

// MetricsRecorder receives one observation per loader run.
type MetricsRecorder interface {
	ObserveLoad(loaderName string, ok bool, values int, duration time.Duration)
}

// Result describes one loader run of the last LoadAll.
type Result struct {
	Loader   string
	OK       bool
	Values   int
	Duration time.Duration
}

// Box aggregates loaders.
type Box struct {
	loaders    []loader.Loader
	requireAll bool
	logger     *logging.Logger
	metrics    MetricsRecorder
	setenv     func(key, value string) error

	mu      sync.RWMutex
	values  map[string]string
	results []Result
}

// Option configures a Box.
type Option func(*Box)

// WithLoaders sets the loader sequence, replacing the default.
func WithLoaders(ls ...loader.Loader) Option {
	return func(b *Box) {
		b.loaders = append(make([]loader.Loader, 0, len(ls)), ls...)
	}
}

// WithRequireAll selects the success policy of LoadAll: every loader must
// succeed (true, the default) or at least one (false).
func WithRequireAll(requireAll bool) Option {
	return func(b *Box) {
		b.requireAll = requireAll
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Box) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records every loader run on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(b *Box) {
		b.metrics = m
	}
}

// WithSetenv replaces os.Setenv for PromoteToEnvironment.
func WithSetenv(fn func(key, value string) error) Option {
	return func(b *Box) {
		if fn != nil {
			b.setenv = fn
		}
	}
}

// New creates a Box.
func New(opts ...Option) *Box {
	b := &Box{
		requireAll: true,
		logger:     logging.Default(),
		setenv:     os.Setenv,
		values:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.loaders == nil {
		b.loaders = []loader.Loader{loaders.NewEnvironLoader(loaders.WithLogger(b.logger))}
	}
	return b
}

// Loaders returns the loader sequence.
func (b *Box) Loaders() []loader.Loader {
	return append([]loader.Loader(nil), b.loaders...)
}

// LoadAll runs every loader in order with opts and rebuilds the merged view
// from their values. It reports whether the success policy was met. An
// empty loader sequence meets require-all and fails require-any.
func (b *Box) LoadAll(ctx context.Context, opts loader.Options) bool {
	merged := make(map[string]string)
	results := make([]Result, 0, len(b.loaders))
	succeeded := 0

	for _, l := range b.loaders {
		start := time.Now()
		ok := l.LoadValues(ctx, opts)
		elapsed := time.Since(start)

		values := l.GetValues()
		for key, value := range values {
			merged[key] = value
		}

		if ok {
			succeeded++
		} else {
			b.logger.Warn("Loader %s did not load any values", l.Name())
		}
		if b.metrics != nil {
			b.metrics.ObserveLoad(l.Name(), ok, len(values), elapsed)
		}
		results = append(results, Result{Loader: l.Name(), OK: ok, Values: len(values), Duration: elapsed})
	}

	b.mu.Lock()
	b.values = merged
	b.results = results
	b.mu.Unlock()

	b.logger.Debug("Loaded %d values from %d/%d loaders", len(merged), succeeded, len(b.loaders))
	if b.requireAll {
		return succeeded == len(b.loaders)
	}
	return succeeded > 0
}

// Results returns the per-loader outcome of the last LoadAll.
func (b *Box) Results() []Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Result(nil), b.results...)
}

// Get returns the merged value for key, or def when absent.
func (b *Box) Get(key, def string) string {
	if value, ok := b.Lookup(key); ok {
		return value
	}
	return def
}

// Lookup returns the merged value for key and whether it is present.
func (b *Box) Lookup(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.values[key]
	return value, ok
}

// Values returns a copy of the merged view.
func (b *Box) Values() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string, len(b.values))
	for key, value := range b.values {
		out[key] = value
	}
	return out
}

// Len returns the number of merged keys.
func (b *Box) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}

// Keys returns the merged keys, sorted.
func (b *Box) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PromoteToEnvironment sets every merged key as a process environment
// variable. Keys that cannot be set are reported together; the others are
// still set. Error messages name keys only, never values.
func (b *Box) PromoteToEnvironment() error {
	values := b.Values()
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := b.setenv(key, values[key]); err != nil {
			errs = append(errs, fmt.Errorf("cannot set %q: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	b.logger.Debug("Promoted %d values to the environment", len(values))
	return nil
}
