// Package auth resolves the bearer token a provider adapter sends for a
// given target, sourced from one environment variable per provider kind.
// Per-host or per-scope tokens are out of scope: operators who need that
// run separate invocations with different environments.
package auth

import (
	"fmt"
	"os"

	"github.com/kraklabs/mirror-sync/internal/model"
)

var envVarByKind = map[model.ProviderKind]string{
	model.ProviderGitHub:      "GITHUB_TOKEN",
	model.ProviderGitLab:      "GITLAB_TOKEN",
	model.ProviderAzureDevOps: "AZURE_DEVOPS_TOKEN",
}

// usernameByKind is the HTTP Basic-auth username each provider expects
// alongside a token in the git http.extraheader; none of the three
// validate the username itself, but each documents a conventional value.
var usernameByKind = map[model.ProviderKind]string{
	model.ProviderGitHub:      "x-access-token",
	model.ProviderGitLab:      "oauth2",
	model.ProviderAzureDevOps: "pat",
}

// TokenForTarget reads the token for target.Kind from its environment
// variable. An empty token is returned as an error rather than silently
// making an unauthenticated request, since every supported provider rate
// limits anonymous traffic far below what a full org listing needs.
func TokenForTarget(target model.ProviderTarget) (string, error) {
	envVar, ok := envVarByKind[target.Kind]
	if !ok {
		return "", fmt.Errorf("no token environment variable known for provider %q", target.Kind)
	}
	token := os.Getenv(envVar)
	if token == "" {
		return "", fmt.Errorf("%s is not set", envVar)
	}
	return token, nil
}

// RepoAuthForTarget resolves the credential pair the git-sync job attaches
// to clone/fetch for target, via the same token TokenForTarget returns to
// the provider adapters.
func RepoAuthForTarget(target model.ProviderTarget) (model.RepoAuth, error) {
	token, err := TokenForTarget(target)
	if err != nil {
		return model.RepoAuth{}, err
	}
	return model.RepoAuth{Username: usernameByKind[target.Kind], Token: token}, nil
}
