package config

import "os"

// Source is one place a configuration value can come from.
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

// MapSource is a fixed set of values, typically a runtime-scoped environment
// or credentials loaded from a secret store.
type MapSource struct {
	name   string
	values map[string]string
}

func NewMapSource(name string, values map[string]string) *MapSource {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapSource{name: name, values: copied}
}

func (s *MapSource) Name() string { return s.name }

func (s *MapSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok && v != ""
}

// EnvSource reads the process-wide environment.
type EnvSource struct{}

func (EnvSource) Name() string { return "env" }

func (EnvSource) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

// Resolver returns the first defined value across an ordered list of sources.
// Earlier sources shadow later ones, so a runtime-scoped source placed first
// takes precedence over the process environment.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Lookup returns the value for key and the name of the source it came from.
func (r *Resolver) Lookup(key string) (value, source string, ok bool) {
	if r == nil {
		return "", "", false
	}
	for _, s := range r.sources {
		if v, ok := s.Lookup(key); ok {
			return v, s.Name(), true
		}
	}
	return "", "", false
}

// Get returns the value for key or "" when no source defines it.
func (r *Resolver) Get(key string) string {
	v, _, _ := r.Lookup(key)
	return v
}

// With returns a resolver that consults src before the receiver's sources.
func (r *Resolver) With(src Source) *Resolver {
	sources := []Source{src}
	if r != nil {
		sources = append(sources, r.sources...)
	}
	return &Resolver{sources: sources}
}

// Sources returns the names of the configured sources in lookup order.
func (r *Resolver) Sources() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}
