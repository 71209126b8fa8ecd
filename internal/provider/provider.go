// Package provider defines the capability every hosted git provider adapter
// implements, and a registry the orchestrator uses to resolve a
// model.ProviderTarget to the adapter that can list and validate it.
package provider

import (
	"context"
	"fmt"

	"github.com/kraklabs/mirror-sync/internal/model"
)

// Provider lists and validates access to repositories for one ProviderKind.
// GetRepo is optional: adapters that have no cheap single-repo lookup
// return (nil, nil) and callers fall back to scanning ListRepos.
type Provider interface {
	Kind() model.ProviderKind
	ListRepos(ctx context.Context, target model.ProviderTarget) ([]model.RemoteRepo, error)
	ValidateAuth(ctx context.Context, target model.ProviderTarget) error
	GetRepo(ctx context.Context, target model.ProviderTarget, repoID string) (*model.RemoteRepo, error)
}

// Registry resolves a ProviderKind to its adapter.
type Registry struct {
	byKind map[model.ProviderKind]Provider
}

// NewRegistry builds a Registry from a set of adapters, indexed by their
// own Kind(). Later adapters with a duplicate kind overwrite earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byKind: make(map[model.ProviderKind]Provider, len(providers))}
	for _, p := range providers {
		r.byKind[p.Kind()] = p
	}
	return r
}

// Resolve returns the adapter for kind, or an error if none is registered.
func (r *Registry) Resolve(kind model.ProviderKind) (Provider, error) {
	p, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no provider adapter registered for %q", kind)
	}
	return p, nil
}
