package gitlab

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
	scope, _ := model.NewProviderScope("acme", "platform")
	return model.ProviderTarget{Kind: model.ProviderGitLab, Scope: scope, Host: host}
}

func TestListReposFollowsNextPageHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/groups/acme%2Fplatform/projects", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			w.Header().Set("x-next-page", "2")
			w.Write([]byte(`[{"id":1,"name":"repo-one","http_url_to_repo":"https://example.com/repo-one.git","default_branch":"refs/heads/main","archived":false}]`))
		case "2":
			w.Write([]byte(`[{"id":2,"name":"repo-two","http_url_to_repo":"https://example.com/repo-two.git","default_branch":"main","archived":true}]`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := providerhttp.New(providerhttp.Config{Timeout: 2 * time.Second, AllowInsecureHTTP: true})
	p := New(client, staticToken("tok"))
	repos, err := p.ListRepos(context.Background(), newTarget(srv.URL))
	if err != nil {
		t.Fatalf("list repos: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d: %+v", len(repos), repos)
	}
	if repos[0].DefaultBranch != "main" {
		t.Fatalf("expected normalized branch, got %q", repos[0].DefaultBranch)
	}
	if !repos[1].Archived {
		t.Fatalf("expected repo-two archived")
	}
}

func TestGetRepoNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/999", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := providerhttp.New(providerhttp.Config{Timeout: 2 * time.Second, AllowInsecureHTTP: true})
	p := New(client, staticToken("tok"))
	repo, err := p.GetRepo(context.Background(), newTarget(srv.URL), "999")
	if err != nil {
		t.Fatalf("get repo: %v", err)
	}
	if repo != nil {
		t.Fatalf("expected nil repo for 404, got %+v", repo)
	}
}
