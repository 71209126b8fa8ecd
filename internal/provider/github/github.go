// Package github implements the provider.Provider capability for GitHub and
// GitHub Enterprise hosts, backed by google/go-github.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/provider"
)

// scopeKind mirrors the three ways a GitHub scope segment can resolve to a
// repo listing endpoint.
type scopeKind int

const (
	scopeOrg scopeKind = iota
	scopeUser
	scopeAuthenticatedUser
)

// Provider lists and validates GitHub/GHE targets. Token lookup is
// delegated to tokenFor so callers can back it with config, env vars, or a
// secrets store without this package knowing which.
type Provider struct {
	httpClient *http.Client
	tokenFor   func(target model.ProviderTarget) (string, error)
}

// New builds a GitHub provider. httpClient is the shared retrying client
// (see internal/providerhttp); tokenFor resolves the bearer token for a
// target's host+scope.
func New(httpClient *http.Client, tokenFor func(target model.ProviderTarget) (string, error)) *Provider {
	return &Provider{httpClient: httpClient, tokenFor: tokenFor}
}

func (p *Provider) Kind() model.ProviderKind {
	return model.ProviderGitHub
}

func (p *Provider) client(ctx context.Context, target model.ProviderTarget) (*github.Client, error) {
	token, err := p.tokenFor(target)
	if err != nil {
		return nil, fmt.Errorf("resolve github token: %w: %w", provider.ErrConfig, err)
	}
	base := p.httpClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		base = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), ts)
	}
	client := github.NewClient(base)
	if host := normalizeAPIHost(target.Host); host != "" {
		enterprise, err := client.WithEnterpriseURLs(host, host)
		if err != nil {
			return nil, fmt.Errorf("configure github enterprise host %q: %w", host, err)
		}
		client = enterprise
	}
	return client, nil
}

// normalizeAPIHost returns "" for the public github.com host (go-github's
// default base URL already points there) and a trailing-slash URL for any
// other host, as WithEnterpriseURLs requires.
func normalizeAPIHost(host string) string {
	if host == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSuffix(host, "/"))
	if lower == "https://github.com" || lower == "github.com" || lower == "https://api.github.com" || lower == "api.github.com" {
		return ""
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		lower = "https://" + lower
	}
	return lower + "/"
}

func classify(scope model.ProviderScope) (scopeKind, string, error) {
	segments := scope.Segments
	if len(segments) != 1 {
		return 0, "", fmt.Errorf("github scope requires a single org/user segment, got %d: %w", len(segments), provider.ErrConfig)
	}
	login := segments[0]
	if login == "" {
		return 0, "", fmt.Errorf("github scope segment must not be empty: %w", provider.ErrConfig)
	}
	if login == "~" {
		return scopeAuthenticatedUser, "", nil
	}
	return scopeOrg, login, nil
}

// ListRepos lists every repository visible for target, trying the org
// endpoint first and falling back to the user endpoint on 404 — a scope
// segment is just a login and GitHub doesn't expose which kind it names
// ahead of time.
func (p *Provider) ListRepos(ctx context.Context, target model.ProviderTarget) ([]model.RemoteRepo, error) {
	kind, login, err := classify(target.Scope)
	if err != nil {
		return nil, err
	}
	client, err := p.client(ctx, target)
	if err != nil {
		return nil, err
	}

	var repos []*github.Repository
	opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
	userOpts := &github.RepositoryListOptions{ListOptions: github.ListOptions{PerPage: 100}}

	// A scope segment is just a login; GitHub doesn't expose ahead of time
	// whether it names an org or a user, so probe the org endpoint once and
	// fall back to the user endpoint for the rest of the listing on 404.
	if kind == scopeOrg {
		_, _, err := client.Repositories.ListByOrg(ctx, login, &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 1}})
		if isNotFound(err) {
			kind = scopeUser
		}
	}

	for page := 1; ; page++ {
		var items []*github.Repository
		var resp *github.Response
		var err error
		switch kind {
		case scopeAuthenticatedUser:
			userOpts.Page = page
			userOpts.Affiliation = "owner"
			items, resp, err = client.Repositories.List(ctx, "", userOpts)
		case scopeOrg:
			opts.Page = page
			items, resp, err = client.Repositories.ListByOrg(ctx, login, opts)
		default:
			userOpts.Page = page
			items, resp, err = client.Repositories.List(ctx, login, userOpts)
		}
		if err != nil {
			if isForbidden(err) {
				return nil, fmt.Errorf("list github repos for %s: %w: %w", target.TargetKey(), provider.ErrForbidden, err)
			}
			return nil, fmt.Errorf("list github repos for %s: %w", target.TargetKey(), err)
		}
		repos = append(repos, items...)
		if resp.NextPage == 0 {
			break
		}
	}

	out := make([]model.RemoteRepo, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRemoteRepo(r, target.Scope))
	}
	return out, nil
}

func toRemoteRepo(r *github.Repository, scope model.ProviderScope) model.RemoteRepo {
	id := ""
	if r.ID != nil {
		id = fmt.Sprintf("%d", *r.ID)
	}
	return model.RemoteRepo{
		ID:            id,
		Name:          r.GetName(),
		CloneURL:      r.GetCloneURL(),
		DefaultBranch: model.NormalizeDefaultBranch(r.GetDefaultBranch()),
		Archived:      r.GetArchived(),
		Provider:      model.ProviderGitHub,
		Scope:         scope,
	}
}

// GetRepo looks up a single repository by name within scope. GitHub's API
// addresses repos by owner/name rather than by the numeric id the cache
// stores, so repoID here is expected to be the repo name.
func (p *Provider) GetRepo(ctx context.Context, target model.ProviderTarget, repoID string) (*model.RemoteRepo, error) {
	_, login, err := classify(target.Scope)
	if err != nil {
		return nil, err
	}
	client, err := p.client(ctx, target)
	if err != nil {
		return nil, err
	}
	r, resp, err := client.Repositories.Get(ctx, login, repoID)
	if isNotFound(err) || (resp != nil && resp.StatusCode == http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get github repo %s/%s: %w", login, repoID, err)
	}
	repo := toRemoteRepo(r, target.Scope)
	return &repo, nil
}

// ValidateAuth confirms the configured token can authenticate by fetching
// the authenticated user. It does not check that the scope's org or user
// is visible to the token.
func (p *Provider) ValidateAuth(ctx context.Context, target model.ProviderTarget) error {
	client, err := p.client(ctx, target)
	if err != nil {
		return err
	}
	if _, _, err := client.Users.Get(ctx, ""); err != nil {
		if isForbidden(err) {
			return fmt.Errorf("validate github token for %s: %w: %w", target.TargetKey(), provider.ErrForbidden, err)
		}
		return fmt.Errorf("validate github token for %s: %w", target.TargetKey(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if ghErr, ok := err.(*github.ErrorResponse); ok {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// isForbidden reports whether err is a GitHub API response carrying a 401
// or 403 status — an invalid token or one lacking the scope needed, as
// opposed to a network failure or an unexpected 5xx.
func isForbidden(err error) bool {
	if err == nil {
		return false
	}
	if ghErr, ok := err.(*github.ErrorResponse); ok {
		if ghErr.Response == nil {
			return false
		}
		code := ghErr.Response.StatusCode
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}
