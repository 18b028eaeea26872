package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Provider is a string-valued configuration store.
type Provider interface {
	// Lookup returns the value stored under name and whether it was set.
	Lookup(name string) (string, bool)
}

// EnvProvider reads the process environment on every lookup.
type EnvProvider struct{}

func (EnvProvider) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapProvider serves values from a fixed map.
type MapProvider map[string]string

func (m MapProvider) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// FileProvider reads a flat YAML document of NAME: value pairs.
// The file is re-read on every lookup so edits apply to the next request;
// a missing or unreadable file reports every name as unset.
type FileProvider struct {
	Path string
}

func (f FileProvider) Lookup(name string) (string, bool) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return "", false
	}
	v, ok := values[name]
	return v, ok
}

// Layered consults each provider in order and returns the first hit.
type Layered []Provider

func (l Layered) Lookup(name string) (string, bool) {
	for _, p := range l {
		if v, ok := p.Lookup(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Warner is the slice of *zap.SugaredLogger the resolver needs.
type Warner interface {
	Warnw(msg string, keysAndValues ...interface{})
}

// Resolver fetches named policy values with a fallback.
type Resolver struct {
	provider Provider
	log      Warner
}

// NewResolver creates a Resolver reading from provider and warning through log.
func NewResolver(provider Provider, log Warner) *Resolver {
	return &Resolver{provider: provider, log: log}
}

// Resolve returns the value stored under name. An unset or empty value yields
// fallback and a warning. A present value is returned untouched; validating it
// is up to the caller.
func (r *Resolver) Resolve(name, fallback string) string {
	if v, ok := r.provider.Lookup(name); ok && v != "" {
		return v
	}
	r.log.Warnw("configuration value not set, using fallback", "name", name, "fallback", fallback)
	return fallback
}
