package azuredevops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/providerhttp"
)

func staticToken(token string) func(model.ProviderTarget) (string, error) {
	return func(model.ProviderTarget) (string, error) { return token, nil }
}

func newTarget(host string) model.ProviderTarget {
	scope, _ := model.NewProviderScope("acme-org", "platform")
	return model.ProviderTarget{Kind: model.ProviderAzureDevOps, Scope: scope, Host: host}
}

func TestListReposDecodesValueArray(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acme-org/platform/_apis/git/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"id":"abc","name":"repo-one","remoteUrl":"https://example.com/repo-one.git","defaultBranch":"refs/heads/main","isDisabled":false}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := providerhttp.New(providerhttp.Config{Timeout: 2 * time.Second, AllowInsecureHTTP: true})
	p := New(client, staticToken("tok"))
	repos, err := p.ListRepos(context.Background(), newTarget(srv.URL))
	if err != nil {
		t.Fatalf("list repos: %v", err)
	}
	if len(repos) != 1 || repos[0].DefaultBranch != "main" {
		t.Fatalf("unexpected repos: %+v", repos)
	}
}

func TestOrgProjectRequiresTwoSegments(t *testing.T) {
	scope, _ := model.NewProviderScope("acme-org")
	if _, _, err := orgProject(scope); err == nil {
		t.Fatalf("expected error for single-segment scope")
	}
}
