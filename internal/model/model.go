// Package model holds the provider-agnostic data types shared by every
// component of the sync engine: provider identity, remote repo rows, and
// the canonical key used to index per-target cache state.
package model

import (
	"fmt"
	"strings"
)

// ProviderKind is the closed set of hosted providers this engine mirrors from.
type ProviderKind string

const (
	ProviderAzureDevOps ProviderKind = "azure-devops"
	ProviderGitHub      ProviderKind = "github"
	ProviderGitLab      ProviderKind = "gitlab"
)

// Prefix returns the stable short string used in filesystem paths and cache keys.
func (k ProviderKind) Prefix() string {
	return string(k)
}

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderAzureDevOps, ProviderGitHub, ProviderGitLab:
		return true
	default:
		return false
	}
}

func (k ProviderKind) String() string {
	return string(k)
}

// ProviderScope is a non-empty ordered sequence of string segments whose
// semantics are provider-specific: a single GitHub org/user, a GitLab
// group path, or an Azure DevOps {org, project} pair.
type ProviderScope struct {
	Segments []string
}

func NewProviderScope(segments ...string) (ProviderScope, error) {
	if len(segments) == 0 {
		return ProviderScope{}, fmt.Errorf("provider scope must have at least one segment")
	}
	cp := make([]string, len(segments))
	copy(cp, segments)
	return ProviderScope{Segments: cp}, nil
}

// Equal compares two scopes by their segment sequence.
func (s ProviderScope) Equal(other ProviderScope) bool {
	if len(s.Segments) != len(other.Segments) {
		return false
	}
	for i := range s.Segments {
		if s.Segments[i] != other.Segments[i] {
			return false
		}
	}
	return true
}

// Join renders the scope as a single "/"-delimited string, used in target
// keys and audit records.
func (s ProviderScope) Join() string {
	return strings.Join(s.Segments, "/")
}

func (s ProviderScope) String() string {
	return s.Join()
}

// ProviderTarget is a (kind, scope, host) tuple resolving to a set of
// remote repositories. Host may be empty: each provider adapter then talks
// to its provider's default host, but Host itself is not filled in, so
// TargetKey renders an empty host component for such a target.
type ProviderTarget struct {
	Kind  ProviderKind
	Scope ProviderScope
	Host  string
}

// TargetKey returns the canonical, stable, collision-free string id used to
// index per-target cache state. Host is lower-cased; scope segments are
// not, since GitHub/GitLab logins and Azure DevOps project names are
// case-sensitive identifiers.
func (t ProviderTarget) TargetKey() string {
	return fmt.Sprintf("%s|%s|%s", t.Kind.Prefix(), strings.ToLower(t.Host), t.Scope.Join())
}

// RemoteRepo is a single repository as reported by a provider's list-repos call.
type RemoteRepo struct {
	ID            string
	Name          string
	CloneURL      string
	DefaultBranch string
	Archived      bool
	Provider      ProviderKind
	Scope         ProviderScope
}

// RepoAuth is the per-repo credential pair the git-sync job attaches to
// clone and fetch, resolved by the auth package from the same token the
// provider adapters use to list a target's repos.
type RepoAuth struct {
	Username string
	Token    string
}

// NormalizeDefaultBranch strips a leading "refs/heads/" and defaults to
// "main" when the input is empty, per the §6.2 HTTP convention shared by
// every provider.
func NormalizeDefaultBranch(raw string) string {
	if raw == "" {
		return "main"
	}
	return strings.TrimPrefix(raw, "refs/heads/")
}
