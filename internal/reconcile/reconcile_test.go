package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/model"
)

func seedRepo(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func TestDetectMissing(t *testing.T) {
	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "one"}
	doc.Repos["r2"] = cache.RepoCacheEntry{Name: "two"}

	missing := DetectMissing(doc, []string{"r2"})
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing repo, got %d", len(missing))
	}
	if _, ok := missing["r1"]; !ok {
		t.Fatalf("expected r1 to be missing")
	}
}

func TestReconcileSkipPolicy(t *testing.T) {
	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "one"}
	missing := DetectMissing(doc, nil)

	summary := Reconcile(doc, t.TempDir(), missing, PolicySkip, nil, nil)
	if summary.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %+v", summary)
	}
	if _, ok := doc.Repos["r1"]; !ok {
		t.Fatalf("expected cache entry retained under skip policy")
	}
}

func TestReconcileRemovePolicyDeletesDirectoryAndCacheEntry(t *testing.T) {
	root := t.TempDir()
	repoPath := seedRepo(t, root, "repo-one")

	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "repo-one", Provider: model.ProviderGitHub, Scope: []string{"acme"}, Path: repoPath}
	missing := DetectMissing(doc, nil)

	summary := Reconcile(doc, root, missing, PolicyRemove, nil, nil)
	if summary.Removed != 1 {
		t.Fatalf("expected 1 removed, got %+v", summary)
	}
	if _, ok := doc.Repos["r1"]; ok {
		t.Fatalf("expected cache entry removed")
	}
	if _, err := os.Stat(repoPath); !os.IsNotExist(err) {
		t.Fatalf("expected directory removed, err=%v", err)
	}
}

func TestReconcileArchivePolicyMovesDirectory(t *testing.T) {
	root := t.TempDir()
	repoPath := seedRepo(t, root, "repo-one")

	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "repo-one", Provider: model.ProviderGitHub, Scope: []string{"acme"}, Path: repoPath}
	missing := DetectMissing(doc, nil)

	summary := Reconcile(doc, root, missing, PolicyArchive, nil, nil)
	if summary.Archived != 1 {
		t.Fatalf("expected 1 archived, got %+v", summary)
	}
	archivePath := filepath.Join(root, "_archive", "github", "acme", "repo-one")
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archived directory at %s: %v", archivePath, err)
	}
}

func TestReconcilePromptDegradesToSkipWithoutCallback(t *testing.T) {
	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "one"}
	missing := DetectMissing(doc, nil)

	summary := Reconcile(doc, t.TempDir(), missing, PolicyPrompt, nil, nil)
	if summary.Skipped != 1 {
		t.Fatalf("expected non-interactive Prompt to degrade to Skip, got %+v", summary)
	}
}

func TestReconcilePromptHonorsCallback(t *testing.T) {
	root := t.TempDir()
	repoPath := seedRepo(t, root, "repo-one")
	doc := cache.NewDocument()
	doc.Repos["r1"] = cache.RepoCacheEntry{Name: "repo-one", Provider: model.ProviderGitHub, Scope: []string{"acme"}, Path: repoPath}
	missing := DetectMissing(doc, nil)

	summary := Reconcile(doc, root, missing, PolicyPrompt, func(string, cache.RepoCacheEntry) Decision {
		return DecisionRemove
	}, nil)
	if summary.Removed != 1 {
		t.Fatalf("expected prompt callback's decision honored, got %+v", summary)
	}
}
