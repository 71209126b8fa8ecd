// Package reconcile computes which cached repos are no longer present in a
// target's current listing and applies the configured policy to each.
package reconcile

import (
	"log/slog"
	"os"

	"github.com/hashicorp/go-set/v3"

	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/fsmove"
	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/paths"
)

// MissingRemotePolicy controls what happens to a repo the cache knows
// about that the provider no longer lists.
type MissingRemotePolicy string

const (
	PolicySkip    MissingRemotePolicy = "skip"
	PolicyArchive MissingRemotePolicy = "archive"
	PolicyRemove  MissingRemotePolicy = "remove"
	PolicyPrompt  MissingRemotePolicy = "prompt"
)

// Decision is the per-repo outcome of a Prompt policy callback.
type Decision string

const (
	DecisionArchive Decision = "archive"
	DecisionRemove  Decision = "remove"
	DecisionSkip    Decision = "skip"
)

// PromptFunc asks an external decision function what to do with one
// missing repo. It is not called for non-Prompt policies.
type PromptFunc func(repoID string, entry cache.RepoCacheEntry) Decision

// Summary aggregates what happened across every missing repo.
type Summary struct {
	Archived int
	Removed  int
	Skipped  int
}

// DetectMissing returns the cache repo ids absent from currentRepoIDs.
func DetectMissing(doc *cache.Document, currentRepoIDs []string) map[string]cache.RepoCacheEntry {
	current := set.From(currentRepoIDs)
	missing := make(map[string]cache.RepoCacheEntry)
	for id, entry := range doc.Repos {
		if !current.Contains(id) {
			missing[id] = entry
		}
	}
	return missing
}

// Reconcile applies policy to every repo id in missing, mutating doc.Repos
// as repos are archived or removed. prompt may be nil; if policy is
// PolicyPrompt and prompt is nil, every repo degrades to Skip (the
// non-interactive default).
func Reconcile(doc *cache.Document, root string, missing map[string]cache.RepoCacheEntry, policy MissingRemotePolicy, prompt PromptFunc, log *slog.Logger) Summary {
	var summary Summary
	for repoID, entry := range missing {
		decision := decisionFor(policy, repoID, entry, prompt)
		switch decision {
		case DecisionArchive:
			if archiveRepo(root, entry, log) {
				delete(doc.Repos, repoID)
				summary.Archived++
			} else {
				summary.Skipped++
			}
		case DecisionRemove:
			if removeRepo(entry, log) {
				delete(doc.Repos, repoID)
				summary.Removed++
			} else {
				summary.Skipped++
			}
		default:
			summary.Skipped++
		}
	}
	return summary
}

func decisionFor(policy MissingRemotePolicy, repoID string, entry cache.RepoCacheEntry, prompt PromptFunc) Decision {
	switch policy {
	case PolicyArchive:
		return DecisionArchive
	case PolicyRemove:
		return DecisionRemove
	case PolicyPrompt:
		if prompt == nil {
			return DecisionSkip
		}
		return prompt(repoID, entry)
	default:
		return DecisionSkip
	}
}

func archiveRepo(root string, entry cache.RepoCacheEntry, log *slog.Logger) bool {
	scope, _ := model.NewProviderScope(entry.Scope...)
	destination := paths.ArchivePath(root, entry.Provider, scope, entry.Name)
	if _, err := os.Stat(entry.Path); os.IsNotExist(err) {
		return true
	}
	if err := fsmove.Move(entry.Path, destination); err != nil {
		if log != nil {
			log.Warn("failed to archive repo", "path", entry.Path, "destination", destination, "err", err)
		}
		return false
	}
	return true
}

func removeRepo(entry cache.RepoCacheEntry, log *slog.Logger) bool {
	if _, err := os.Stat(entry.Path); os.IsNotExist(err) {
		return true
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		if log != nil {
			log.Warn("failed to remove repo", "path", entry.Path, "err", err)
		}
		return false
	}
	return true
}
