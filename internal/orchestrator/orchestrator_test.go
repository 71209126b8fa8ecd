package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/inventory"
	"github.com/kraklabs/mirror-sync/internal/lockmanager"
	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/provider"
	"github.com/kraklabs/mirror-sync/internal/reconcile"
	"github.com/kraklabs/mirror-sync/internal/statusemitter"
	"github.com/kraklabs/mirror-sync/internal/workerpool"
)

type fakeProvider struct {
	kind  model.ProviderKind
	repos []model.RemoteRepo
}

func (p *fakeProvider) Kind() model.ProviderKind { return p.kind }
func (p *fakeProvider) ListRepos(ctx context.Context, target model.ProviderTarget) ([]model.RemoteRepo, error) {
	return p.repos, nil
}
func (p *fakeProvider) ValidateAuth(ctx context.Context, target model.ProviderTarget) error {
	return nil
}
func (p *fakeProvider) GetRepo(ctx context.Context, target model.ProviderTarget, repoID string) (*model.RemoteRepo, error) {
	return nil, nil
}

type fakeGitSync struct {
	outcome workerpool.SyncOutcome
	err     error
}

func (g *fakeGitSync) Sync(ctx context.Context, path, cloneURL string, auth model.RepoAuth) (workerpool.SyncOutcome, error) {
	return g.outcome, g.err
}

func mustTarget(t *testing.T, kind model.ProviderKind, host string, segments ...string) model.ProviderTarget {
	t.Helper()
	scope, err := model.NewProviderScope(segments...)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	return model.ProviderTarget{Kind: kind, Scope: scope, Host: host}
}

func TestRunFreshTargetAddsRepos(t *testing.T) {
	root := t.TempDir()
	cachePath := filepath.Join(root, "cache.json")
	lockPath := filepath.Join(root, "lock")

	target := mustTarget(t, model.ProviderGitHub, "github.com", "acme")
	fp := &fakeProvider{kind: model.ProviderGitHub, repos: []model.RemoteRepo{
		{ID: "r1", Name: "r1", CloneURL: "https://github.com/acme/r1.git", Provider: model.ProviderGitHub, Scope: target.Scope},
		{ID: "r2", Name: "r2", CloneURL: "https://github.com/acme/r2.git", Provider: model.ProviderGitHub, Scope: target.Scope},
	}}
	registry := provider.NewRegistry(fp)

	o := &Orchestrator{
		LockPath:  lockPath,
		CachePath: cachePath,
		Inventory: inventory.NewLoader(registry),
		GitSync:   &fakeGitSync{outcome: workerpool.OutcomeAdded},
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
	}

	summary, err := o.Run(context.Background(), Options{
		Targets:     []model.ProviderTarget{target},
		Root:        root,
		Force:       true,
		Policy:      reconcile.PolicySkip,
		Parallelism: 2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Status != "completed" {
		t.Fatalf("unexpected summary status: %s", summary.Status)
	}
	if len(summary.Targets) != 1 {
		t.Fatalf("expected 1 target summary, got %d", len(summary.Targets))
	}
	ts := summary.Targets[0]
	if ts.Added != 2 || ts.Status != "ok" {
		t.Fatalf("unexpected target summary: %+v", ts)
	}

	doc, err := cache.Load(cachePath)
	if err != nil {
		t.Fatalf("load cache after run: %v", err)
	}
	if len(doc.Repos) != 2 {
		t.Fatalf("expected 2 cached repo entries, got %d", len(doc.Repos))
	}
}

func TestRunSkipsBackedOffTargetWithoutForce(t *testing.T) {
	root := t.TempDir()
	cachePath := filepath.Join(root, "cache.json")
	lockPath := filepath.Join(root, "lock")

	target := mustTarget(t, model.ProviderGitHub, "github.com", "acme")
	key := target.TargetKey()

	seed := cache.NewDocument()
	seed.RecordTargetFailure(key, 1_000)
	if err := cache.Save(cachePath, seed); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	fp := &fakeProvider{kind: model.ProviderGitHub}
	registry := provider.NewRegistry(fp)

	o := &Orchestrator{
		LockPath:  lockPath,
		CachePath: cachePath,
		Inventory: inventory.NewLoader(registry),
		GitSync:   &fakeGitSync{outcome: workerpool.OutcomeAdded},
		Now:       func() time.Time { return time.Unix(1_000+10, 0) },
	}

	var kinds []statusemitter.Kind
	subscriber := statusemitter.Subscriber(func(p statusemitter.Progress) {
		kinds = append(kinds, p.Kind)
	})

	summary, err := o.Run(context.Background(), Options{
		Targets:    []model.ProviderTarget{target},
		Root:       root,
		Policy:     reconcile.PolicySkip,
		Subscriber: subscriber,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Targets[0].Status != "skipped: backoff" {
		t.Fatalf("expected backoff skip, got %s", summary.Targets[0].Status)
	}
	if len(kinds) != 2 || kinds[0] != statusemitter.KindTargetBegin || kinds[1] != statusemitter.KindTargetEnd {
		t.Fatalf("expected exactly TargetBegin then TargetEnd on a backoff skip, got %v", kinds)
	}
}

func TestRunReturnsSkippedOnLockContention(t *testing.T) {
	root := t.TempDir()
	cachePath := filepath.Join(root, "cache.json")
	lockPath := filepath.Join(root, "lock")

	fp := &fakeProvider{kind: model.ProviderGitHub}
	registry := provider.NewRegistry(fp)
	o := &Orchestrator{
		LockPath:  lockPath,
		CachePath: cachePath,
		Inventory: inventory.NewLoader(registry),
		GitSync:   &fakeGitSync{outcome: workerpool.OutcomeAdded},
	}

	held, err := lockmanager.TryAcquire(lockPath)
	if err != nil {
		t.Fatalf("acquire test lock: %v", err)
	}
	defer held.Release()

	summary, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Status != "skipped" {
		t.Fatalf("expected skipped status on contention, got %s", summary.Status)
	}
}

func TestEffectiveParallelismCapsToItemCount(t *testing.T) {
	if got := effectiveParallelism(8, 3); got != 3 {
		t.Fatalf("expected parallelism capped to item count, got %d", got)
	}
	if got := effectiveParallelism(0, 5); got != 4 {
		t.Fatalf("expected default parallelism 4, got %d", got)
	}
}
