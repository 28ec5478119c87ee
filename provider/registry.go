package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Registry is an ordered set of providers. Lookups try providers in
// registration order and the first match wins.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry. Prefixes must be unique, ignoring case.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a provider to the registry.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("nil provider")
	}
	if r.ByPrefix(p.Prefix()) != nil {
		return fmt.Errorf("provider with prefix %s already registered", p.Prefix())
	}
	r.providers = append(r.providers, p)
	return nil
}

// Lookup returns the provider for code. A provider matches when the code,
// optionally preceded by "urn:", starts with its prefix ignoring case, or
// when its default prefix pattern matches the code.
func (r *Registry) Lookup(code string) (Provider, error) {
	for _, p := range r.providers {
		if MatchPrefix(p, code) || p.MatchDefaultPrefix(code) {
			return p, nil
		}
	}
	return nil, &UnrecognizedPrefixError{
		Code:     code,
		Prefixes: r.Prefixes(),
	}
}

// ByPrefix returns the provider with the given prefix, ignoring case, or nil.
func (r *Registry) ByPrefix(prefix string) Provider {
	for _, p := range r.providers {
		if strings.EqualFold(p.Prefix(), prefix) {
			return p
		}
	}
	return nil
}

// Prefixes returns the prefixes of all providers in registration order.
func (r *Registry) Prefixes() []string {
	prefixes := make([]string, len(r.providers))
	for i, p := range r.providers {
		prefixes[i] = p.Prefix()
	}
	return prefixes
}

// Providers returns all providers in registration order.
func (r *Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// MatchPrefix reports whether code starts with the prefix of p, ignoring case
// and an optional leading "urn:".
func MatchPrefix(p Provider, code string) bool {
	lower := strings.ToLower(code)
	lower = strings.TrimPrefix(lower, "urn:")
	return strings.HasPrefix(lower, strings.ToLower(p.Prefix()))
}
