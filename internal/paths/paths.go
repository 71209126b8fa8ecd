// Package paths computes the on-disk location of a repo mirror and its
// archive counterpart from provider identity, matching the original
// implementation's paths.rs one-for-one.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/kraklabs/mirror-sync/internal/model"
)

// ArchiveDirName is the reserved top-level directory the deletion
// reconciler moves repos into under the Archive policy.
const ArchiveDirName = "_archive"

// RepoPath computes root/provider-prefix/scope-segments.../sanitized-name.
func RepoPath(root string, provider model.ProviderKind, scope model.ProviderScope, repoName string) string {
	parts := make([]string, 0, len(scope.Segments)+2)
	parts = append(parts, root, provider.Prefix())
	parts = append(parts, scope.Segments...)
	parts = append(parts, SanitizeRepoName(repoName))
	return filepath.Join(parts...)
}

// ArchivePath computes the destination path under <root>/_archive/... for a repo.
func ArchivePath(root string, provider model.ProviderKind, scope model.ProviderScope, repoName string) string {
	return RepoPath(filepath.Join(root, ArchiveDirName), provider, scope, repoName)
}

// SanitizeRepoName replaces path separators with underscores so a repo name
// never introduces extra path components.
func SanitizeRepoName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_")
	return replacer.Replace(name)
}
