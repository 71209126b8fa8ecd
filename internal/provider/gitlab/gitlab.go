// Package gitlab implements the provider.Provider capability for GitLab
// (gitlab.com and self-managed instances), using a plain REST client since
// no GitLab client library is available in this module's dependency tree.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/provider"
	"github.com/kraklabs/mirror-sync/internal/providerhttp"
)

const defaultHost = "https://gitlab.com"

// projectItem is the subset of GitLab's project resource this adapter needs.
type projectItem struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	HTTPURLToRepo string `json:"http_url_to_repo"`
	DefaultBranch string `json:"default_branch"`
	Archived      bool   `json:"archived"`
}

// Provider lists and validates GitLab group targets.
type Provider struct {
	client   *providerhttp.Client
	tokenFor func(target model.ProviderTarget) (string, error)
}

func New(client *providerhttp.Client, tokenFor func(target model.ProviderTarget) (string, error)) *Provider {
	return &Provider{client: client, tokenFor: tokenFor}
}

func (p *Provider) Kind() model.ProviderKind {
	return model.ProviderGitLab
}

func host(target model.ProviderTarget) string {
	if target.Host == "" {
		return defaultHost
	}
	return strings.TrimSuffix(target.Host, "/")
}

func groupPath(scope model.ProviderScope) (string, error) {
	if len(scope.Segments) == 0 {
		return "", fmt.Errorf("gitlab scope requires at least one group segment: %w", provider.ErrConfig)
	}
	return scope.Join(), nil
}

// ListRepos lists every project under a GitLab group, including
// subgroups, following the x-next-page response header until exhausted.
func (p *Provider) ListRepos(ctx context.Context, target model.ProviderTarget) ([]model.RemoteRepo, error) {
	group, err := groupPath(target.Scope)
	if err != nil {
		return nil, err
	}
	token, err := p.tokenFor(target)
	if err != nil {
		return nil, fmt.Errorf("resolve gitlab token: %w: %w", provider.ErrConfig, err)
	}

	var repos []model.RemoteRepo
	page := 1
	for {
		reqURL := fmt.Sprintf("%s/api/v4/groups/%s/projects?per_page=100&page=%d&include_subgroups=true&archived=true",
			host(target), url.PathEscape(group), page)
		resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
		if err != nil {
			return nil, fmt.Errorf("list gitlab projects for %s: %w", target.TargetKey(), err)
		}
		items, next, err := decodeProjectsPage(resp)
		if err != nil {
			return nil, fmt.Errorf("decode gitlab projects for %s: %w", target.TargetKey(), err)
		}
		for _, item := range items {
			repos = append(repos, model.RemoteRepo{
				ID:            fmt.Sprintf("%d", item.ID),
				Name:          item.Name,
				CloneURL:      item.HTTPURLToRepo,
				DefaultBranch: model.NormalizeDefaultBranch(item.DefaultBranch),
				Archived:      item.Archived,
				Provider:      model.ProviderGitLab,
				Scope:         target.Scope,
			})
		}
		if next == 0 {
			break
		}
		page = next
	}
	return repos, nil
}

func decodeProjectsPage(resp *http.Response) ([]projectItem, int, error) {
	defer resp.Body.Close()
	if isForbiddenStatus(resp.StatusCode) {
		return nil, 0, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var items []projectItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, 0, err
	}
	next, _ := strconv.Atoi(resp.Header.Get("x-next-page"))
	return items, next, nil
}

// GetRepo fetches a single project by its numeric GitLab id.
func (p *Provider) GetRepo(ctx context.Context, target model.ProviderTarget, repoID string) (*model.RemoteRepo, error) {
	token, err := p.tokenFor(target)
	if err != nil {
		return nil, fmt.Errorf("resolve gitlab token: %w: %w", provider.ErrConfig, err)
	}
	reqURL := fmt.Sprintf("%s/api/v4/projects/%s", host(target), url.PathEscape(repoID))
	resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get gitlab project %s: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if isForbiddenStatus(resp.StatusCode) {
		return nil, fmt.Errorf("get gitlab project %s: unexpected status %d: %w", repoID, resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get gitlab project %s: unexpected status %d", repoID, resp.StatusCode)
	}
	var item projectItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode gitlab project %s: %w", repoID, err)
	}
	repo := model.RemoteRepo{
		ID:            fmt.Sprintf("%d", item.ID),
		Name:          item.Name,
		CloneURL:      item.HTTPURLToRepo,
		DefaultBranch: model.NormalizeDefaultBranch(item.DefaultBranch),
		Archived:      item.Archived,
		Provider:      model.ProviderGitLab,
		Scope:         target.Scope,
	}
	return &repo, nil
}

// ValidateAuth confirms the token can read its own scopes via the personal
// access token introspection endpoint.
func (p *Provider) ValidateAuth(ctx context.Context, target model.ProviderTarget) error {
	token, err := p.tokenFor(target)
	if err != nil {
		return fmt.Errorf("resolve gitlab token: %w: %w", provider.ErrConfig, err)
	}
	reqURL := host(target) + "/api/v4/personal_access_tokens/self"
	resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return fmt.Errorf("validate gitlab token for %s: %w", target.TargetKey(), err)
	}
	defer resp.Body.Close()
	if isForbiddenStatus(resp.StatusCode) {
		return fmt.Errorf("validate gitlab token for %s: unexpected status %d: %w", target.TargetKey(), resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validate gitlab token for %s: unexpected status %d", target.TargetKey(), resp.StatusCode)
	}
	return nil
}

// isForbiddenStatus reports whether status is the 401/403 pair the
// provider uses to signal an invalid or insufficiently scoped token.
func isForbiddenStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
