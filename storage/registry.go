package storage

import (
	"log/slog"
	"sort"

	"github.com/SmilyOrg/timeship/tserr"
)

// Registry holds every storage built at boot, keyed by name. It is built
// once during startup and treated as shared immutable state thereafter —
// no mutex guards reads, because nothing ever writes to it after boot
// completes.
type Registry struct {
	order       []string
	byName      map[string]*Facade
	defaultName string
	logger      *slog.Logger
}

// NewRegistry builds an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byName: make(map[string]*Facade), logger: logger}
}

// Register adds f to the registry. If isDefault is true, or f is the first
// storage registered, f becomes the default storage.
func (r *Registry) Register(f *Facade, isDefault bool) {
	if _, exists := r.byName[f.Name()]; !exists {
		r.order = append(r.order, f.Name())
	}
	r.byName[f.Name()] = f
	if isDefault || r.defaultName == "" {
		r.defaultName = f.Name()
	}
}

// Get returns the storage named name, if registered.
func (r *Registry) Get(name string) (*Facade, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// MustGet returns the storage named name or a StorageNotFound error.
func (r *Registry) MustGet(name string) (*Facade, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, tserr.New("lookup", tserr.StorageNotFound, name, nil)
	}
	return f, nil
}

// Default returns the default storage, if any is registered.
func (r *Registry) Default() (*Facade, bool) {
	if r.defaultName == "" {
		return nil, false
	}
	return r.Get(r.defaultName)
}

// Names returns every registered storage name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Close releases every storage's root handle in reverse registration
// order. It continues past individual errors and returns the first one
// encountered.
func (r *Registry) Close() error {
	var first error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		f := r.byName[name]
		if err := f.Close(); err != nil {
			r.logger.Warn("storage close failed", "storage", name, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
