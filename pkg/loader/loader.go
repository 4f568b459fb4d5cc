package loader

import (
	"context"
	"sync"
)

// Loader is the capability set every secret source implements.
//
// Implementations must be safe to read (GetValues) while another goroutine
// resets them; LoadValues itself is expected to be called sequentially by
// the aggregator.
type Loader interface {
	// Name returns the loader's stable type identifier, for example
	// "environ" or "awssecret". It is used in logs, metrics and the registry.
	Name() string

	// LoadValues attempts to populate the internal mapping from the source.
	// It returns true when the call loaded at least one value. All failures
	// are handled internally and logged; false is the only failure signal.
	LoadValues(ctx context.Context, opts Options) bool

	// GetValues returns a copy of the current mapping.
	GetValues() map[string]string

	// ResetValues clears the mapping. It is idempotent.
	ResetValues()
}

// Values is a concurrency-safe string mapping meant to be embedded by
// loaders. The zero value is ready to use.
type Values struct {
	mu     sync.RWMutex
	values map[string]string
}

// GetValues returns a copy of the stored mapping. It never returns nil.
func (v *Values) GetValues() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]string, len(v.values))
	for key, value := range v.values {
		out[key] = value
	}
	return out
}

// ResetValues replaces the mapping with a fresh empty one.
func (v *Values) ResetValues() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values = make(map[string]string)
}

// Set stores a single key, overwriting any previous value.
func (v *Values) Set(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]string)
	}
	v.values[key] = value
}

// Update merges values into the mapping, overwriting on collision. The
// existing mapping is not cleared.
func (v *Values) Update(values map[string]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]string, len(values))
	}
	for key, value := range values {
		v.values[key] = value
	}
}

// Len returns the number of stored keys.
func (v *Values) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values)
}
