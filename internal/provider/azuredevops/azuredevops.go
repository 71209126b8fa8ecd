// Package azuredevops implements the provider.Provider capability for Azure
// DevOps Services, using a plain REST client since no Azure DevOps Go
// client library is available in this module's dependency tree.
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/provider"
	"github.com/kraklabs/mirror-sync/internal/providerhttp"
)

const defaultHost = "https://dev.azure.com"
const apiVersion = "7.1"

type projectRef struct {
	Name string `json:"name"`
}

type repoItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	RemoteURL     string      `json:"remoteUrl"`
	DefaultBranch string      `json:"defaultBranch"`
	IsDisabled    bool        `json:"isDisabled"`
	Project       *projectRef `json:"project"`
}

type reposResponse struct {
	Value []repoItem `json:"value"`
}

// Provider lists and validates Azure DevOps {organization, project} targets.
type Provider struct {
	client   *providerhttp.Client
	tokenFor func(target model.ProviderTarget) (string, error)
}

func New(client *providerhttp.Client, tokenFor func(target model.ProviderTarget) (string, error)) *Provider {
	return &Provider{client: client, tokenFor: tokenFor}
}

func (p *Provider) Kind() model.ProviderKind {
	return model.ProviderAzureDevOps
}

func host(target model.ProviderTarget) string {
	if target.Host == "" {
		return defaultHost
	}
	return strings.TrimSuffix(target.Host, "/")
}

// orgProject splits a scope into its {organization, project} pair. Azure
// DevOps has no notion of listing repos across an entire org, so the scope
// must name both.
func orgProject(scope model.ProviderScope) (string, string, error) {
	if len(scope.Segments) != 2 {
		return "", "", fmt.Errorf("azure devops scope requires exactly {organization, project}, got %d segments: %w", len(scope.Segments), provider.ErrConfig)
	}
	return scope.Segments[0], scope.Segments[1], nil
}

// isForbiddenStatus reports whether status is the 401/403 pair Azure
// DevOps uses to signal an invalid or insufficiently scoped token.
func isForbiddenStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// ListRepos lists every repository in one Azure DevOps project. The
// Git Repositories API is not paginated.
func (p *Provider) ListRepos(ctx context.Context, target model.ProviderTarget) ([]model.RemoteRepo, error) {
	org, project, err := orgProject(target.Scope)
	if err != nil {
		return nil, err
	}
	token, err := p.tokenFor(target)
	if err != nil {
		return nil, fmt.Errorf("resolve azure devops token: %w: %w", provider.ErrConfig, err)
	}

	reqURL := fmt.Sprintf("%s/%s/%s/_apis/git/repositories?api-version=%s",
		host(target), url.PathEscape(org), url.PathEscape(project), apiVersion)
	resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return nil, fmt.Errorf("list azure devops repos for %s: %w", target.TargetKey(), err)
	}
	defer resp.Body.Close()
	if isForbiddenStatus(resp.StatusCode) {
		return nil, fmt.Errorf("list azure devops repos for %s: unexpected status %d: %w", target.TargetKey(), resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list azure devops repos for %s: unexpected status %d", target.TargetKey(), resp.StatusCode)
	}
	var body reposResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode azure devops repos for %s: %w", target.TargetKey(), err)
	}

	repos := make([]model.RemoteRepo, 0, len(body.Value))
	for _, item := range body.Value {
		repos = append(repos, toRemoteRepo(item, target.Scope))
	}
	return repos, nil
}

func toRemoteRepo(item repoItem, scope model.ProviderScope) model.RemoteRepo {
	return model.RemoteRepo{
		ID:            item.ID,
		Name:          item.Name,
		CloneURL:      item.RemoteURL,
		DefaultBranch: model.NormalizeDefaultBranch(item.DefaultBranch),
		Archived:      item.IsDisabled,
		Provider:      model.ProviderAzureDevOps,
		Scope:         scope,
	}
}

// GetRepo fetches a single repository by id or name within a project.
func (p *Provider) GetRepo(ctx context.Context, target model.ProviderTarget, repoID string) (*model.RemoteRepo, error) {
	org, project, err := orgProject(target.Scope)
	if err != nil {
		return nil, err
	}
	token, err := p.tokenFor(target)
	if err != nil {
		return nil, fmt.Errorf("resolve azure devops token: %w: %w", provider.ErrConfig, err)
	}
	reqURL := fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s?api-version=%s",
		host(target), url.PathEscape(org), url.PathEscape(project), url.PathEscape(repoID), apiVersion)
	resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get azure devops repo %s: %w", repoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if isForbiddenStatus(resp.StatusCode) {
		return nil, fmt.Errorf("get azure devops repo %s: unexpected status %d: %w", repoID, resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get azure devops repo %s: unexpected status %d", repoID, resp.StatusCode)
	}
	var item repoItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode azure devops repo %s: %w", repoID, err)
	}
	repo := toRemoteRepo(item, target.Scope)
	return &repo, nil
}

// ValidateAuth confirms the token can list projects for the target's
// organization.
func (p *Provider) ValidateAuth(ctx context.Context, target model.ProviderTarget) error {
	org, _, err := orgProject(target.Scope)
	if err != nil {
		return err
	}
	token, err := p.tokenFor(target)
	if err != nil {
		return fmt.Errorf("resolve azure devops token: %w: %w", provider.ErrConfig, err)
	}
	reqURL := fmt.Sprintf("%s/%s/_apis/projects?api-version=%s", host(target), url.PathEscape(org), apiVersion)
	resp, err := p.client.Do(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return fmt.Errorf("validate azure devops token for %s: %w", target.TargetKey(), err)
	}
	defer resp.Body.Close()
	if isForbiddenStatus(resp.StatusCode) {
		return fmt.Errorf("validate azure devops token for %s: unexpected status %d: %w", target.TargetKey(), resp.StatusCode, provider.ErrForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validate azure devops token for %s: unexpected status %d", target.TargetKey(), resp.StatusCode)
	}
	return nil
}
