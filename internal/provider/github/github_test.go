package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kraklabs/mirror-sync/internal/model"
)

func staticToken(token string) func(model.ProviderTarget) (string, error) {
	return func(model.ProviderTarget) (string, error) { return token, nil }
}

func newTarget(t *testing.T, host string) model.ProviderTarget {
	t.Helper()
	scope, err := model.NewProviderScope("acme")
	if err != nil {
		t.Fatalf("new scope: %v", err)
	}
	return model.ProviderTarget{Kind: model.ProviderGitHub, Scope: scope, Host: host}
}

func TestListReposPagesOrgEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "", "1":
			w.Header().Set("Link", `<http://`+r.Host+`/api/v3/orgs/acme/repos?page=2>; rel="next"`)
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": 1, "name": "repo-one", "clone_url": "https://example.com/repo-one.git", "default_branch": "refs/heads/main", "archived": false},
			})
		case "2":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": 2, "name": "repo-two", "clone_url": "https://example.com/repo-two.git", "default_branch": "main", "archived": true},
			})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(srv.Client(), staticToken("tok"))
	repos, err := p.ListRepos(context.Background(), newTarget(t, srv.URL))
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

func TestListReposFallsBackToUserEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	})
	mux.HandleFunc("/api/v3/users/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 3, "name": "personal-repo", "clone_url": "https://example.com/personal-repo.git", "archived": false},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(srv.Client(), staticToken("tok"))
	repos, err := p.ListRepos(context.Background(), newTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("list repos: %v", err)
	}
	if len(repos) != 1 || repos[0].Name != "personal-repo" {
		t.Fatalf("unexpected repos: %+v", repos)
	}
}

func TestClassifyRejectsMultiSegmentScope(t *testing.T) {
	scope, _ := model.NewProviderScope("org", "extra")
	if _, _, err := classify(scope); err == nil {
		t.Fatalf("expected error for multi-segment scope")
	}
}
