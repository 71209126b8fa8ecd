// Package inventory loads the current remote repo listing for a target,
// preferring a fresh cache snapshot over a live provider call.
package inventory

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/provider"
)

// Loader fetches and caches per-target provider listings. A single
// singleflight group de-duplicates concurrent refreshes of the same
// target.
type Loader struct {
	registry *provider.Registry
	group    singleflight.Group
	mu       sync.Mutex
}

func NewLoader(registry *provider.Registry) *Loader {
	return &Loader{registry: registry}
}

// Load returns the repo list for target and whether it was served from
// cache. If refresh is false and the cached inventory for the target's
// TargetKey is no older than cache.InventoryTTL, the cache is used as-is.
// A provider failure leaves the existing cached inventory untouched.
func (l *Loader) Load(ctx context.Context, doc *cache.Document, target model.ProviderTarget, refresh bool, now int64) ([]model.RemoteRepo, bool, error) {
	key := target.TargetKey()

	l.mu.Lock()
	entry, ok := doc.RepoInventory[key]
	l.mu.Unlock()
	if !refresh && ok && now-entry.FetchedAt <= cache.InventoryTTL {
		return rowsToRepos(entry.Repos), true, nil
	}

	p, err := l.registry.Resolve(target.Kind)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", provider.ErrConfig, err)
	}

	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		return p.ListRepos(ctx, target)
	})
	if err != nil {
		return nil, false, fmt.Errorf("list repos for %s: %w", key, err)
	}
	repos := result.([]model.RemoteRepo)

	l.mu.Lock()
	doc.RepoInventory[key] = cache.RepoInventoryEntry{
		FetchedAt: now,
		Repos:     reposToRows(repos),
	}
	l.mu.Unlock()
	return repos, false, nil
}

func rowsToRepos(rows []cache.InventoryRepoRow) []model.RemoteRepo {
	out := make([]model.RemoteRepo, 0, len(rows))
	for _, row := range rows {
		scope, _ := model.NewProviderScope(row.Scope...)
		out = append(out, model.RemoteRepo{
			ID:            row.ID,
			Name:          row.Name,
			CloneURL:      row.CloneURL,
			DefaultBranch: row.DefaultBranch,
			Archived:      row.Archived,
			Provider:      row.Provider,
			Scope:         scope,
		})
	}
	return out
}

func reposToRows(repos []model.RemoteRepo) []cache.InventoryRepoRow {
	out := make([]cache.InventoryRepoRow, 0, len(repos))
	for _, r := range repos {
		out = append(out, cache.InventoryRepoRow{
			ID:            r.ID,
			Name:          r.Name,
			CloneURL:      r.CloneURL,
			DefaultBranch: r.DefaultBranch,
			Archived:      r.Archived,
			Provider:      r.Provider,
			Scope:         r.Scope.Segments,
		})
	}
	return out
}
