// Package planner materializes per-repo work items from a target's repo
// listing, repairing the cached on-disk path when a repo has been renamed
// upstream since the last run.
package planner

import (
	"log/slog"
	"os"

	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/fsmove"
	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/paths"
)

// WorkItem pairs a remote repo with the local path it should be synced to.
type WorkItem struct {
	Repo model.RemoteRepo
	Path string
}

// BuildWorkItems computes the canonical path for every repo and, when the
// cache disagrees with it, repairs the discrepancy: a rename is detected
// by the stored path existing while the canonical path does not, and the
// directory is moved to match; a missing stored path is silently adopted
// as having moved already. The cache itself is not mutated here — the
// caller updates RepoCacheEntry once the sync outcome for that path is
// known.
func BuildWorkItems(doc *cache.Document, root string, repos []model.RemoteRepo, log *slog.Logger) []WorkItem {
	items := make([]WorkItem, 0, len(repos))
	for _, repo := range repos {
		canonical := paths.RepoPath(root, repo.Provider, repo.Scope, repo.Name)
		entry, ok := doc.Repos[repo.ID]
		if ok && entry.Path != canonical {
			reconcilePath(log, repo.ID, entry.Path, canonical)
		}
		items = append(items, WorkItem{Repo: repo, Path: canonical})
	}
	return items
}

func reconcilePath(log *slog.Logger, repoID, storedPath, canonical string) {
	storedExists := pathExists(storedPath)
	canonicalExists := pathExists(canonical)

	switch {
	case storedExists && !canonicalExists:
		if err := fsmove.Move(storedPath, canonical); err != nil {
			if log != nil {
				log.Warn("failed to move repo after rename", "repo_id", repoID, "from", storedPath, "to", canonical, "err", err)
			}
			return
		}
		if log != nil {
			log.Info("moved repo to match rename", "repo_id", repoID, "from", storedPath, "to", canonical)
		}
	case !storedExists:
		if log != nil {
			log.Info("cached repo path missing; adopting new path", "repo_id", repoID, "from", storedPath, "to", canonical)
		}
	default:
		// Both exist: prefer canonical, leave the stale directory untouched
		// for the operator to clean up manually.
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
