// Package gitsync implements the on-disk git mirror operation via the
// system git binary: clone --mirror on first sync, fetch --all --prune on
// every sync after.
package gitsync

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/workerpool"
)

// GitSync clones or fetches bare mirrors on disk.
type GitSync struct {
	log *slog.Logger
}

func New(log *slog.Logger) *GitSync {
	return &GitSync{log: log}
}

// Sync ensures path holds a bare mirror of cloneURL, cloning it if absent
// and fetching otherwise. It reports OutcomeAdded on first clone,
// OutcomeUpdated when fetch brought in new refs, OutcomeUnchanged
// otherwise. ctx cancellation aborts the in-flight git process promptly,
// satisfying the worker pool's cooperative-cancellation contract.
func (g *GitSync) Sync(ctx context.Context, path, cloneURL string, auth model.RepoAuth) (workerpool.SyncOutcome, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return workerpool.OutcomeAdded, g.clone(ctx, path, cloneURL, auth)
	}
	changed, err := g.fetch(ctx, path, auth)
	if err != nil {
		return "", err
	}
	if changed {
		return workerpool.OutcomeUpdated, nil
	}
	return workerpool.OutcomeUnchanged, nil
}

func (g *GitSync) clone(ctx context.Context, path, cloneURL string, auth model.RepoAuth) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	args := []string{
		"-c", "gc.auto=0",
		"-c", "core.compression=0",
		"clone", "--bare", "--mirror", cloneURL, path,
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = gitEnv(authHeaderValue(auth))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s: %w\noutput: %s", cloneURL, err, output)
	}
	if g.log != nil {
		g.log.Debug("cloned mirror", "path", path)
	}
	return nil
}

// fetch runs git fetch and reports whether any ref changed, by diffing the
// pre- and post-fetch output of show-ref.
func (g *GitSync) fetch(ctx context.Context, path string, auth model.RepoAuth) (bool, error) {
	before, err := refSnapshot(ctx, path)
	if err != nil {
		return false, fmt.Errorf("snapshot refs before fetch: %w", err)
	}

	args := []string{
		"-C", path,
		"-c", "gc.auto=0",
		"-c", "core.compression=0",
		"fetch", "--all", "--prune", "--force",
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = gitEnv(authHeaderValue(auth))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("git fetch %s: %w\noutput: %s", path, err, output)
	}

	after, err := refSnapshot(ctx, path)
	if err != nil {
		return false, fmt.Errorf("snapshot refs after fetch: %w", err)
	}
	if g.log != nil {
		g.log.Debug("fetched mirror", "path", path)
	}
	return before != after, nil
}

func refSnapshot(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "show-ref")
	output, err := cmd.CombinedOutput()
	if err != nil {
		// An empty mirror has no refs and exits non-zero; treat that as an
		// empty, valid snapshot rather than an error.
		if len(output) == 0 {
			return "", nil
		}
		return "", fmt.Errorf("show-ref: %w\noutput: %s", err, output)
	}
	return string(output), nil
}

// gitEnv disables interactive prompts and ignores any operator git config
// so mirror operations behave identically regardless of the host's
// environment. When authHeader is non-empty it is injected as an
// in-process http.extraheader via GIT_CONFIG_KEY/VALUE, the same mechanism
// git itself uses for -c, so the credential never touches a config file on
// disk.
func gitEnv(authHeader string) []string {
	env := append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_SYSTEM=/dev/null",
	)
	if authHeader == "" {
		return env
	}
	return append(env,
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraheader",
		"GIT_CONFIG_VALUE_0=Authorization: "+authHeader,
	)
}

// authHeaderValue renders auth as an HTTP Basic-auth header value, or ""
// when no token is configured, in which case gitEnv injects nothing and
// the clone/fetch proceeds unauthenticated.
func authHeaderValue(auth model.RepoAuth) string {
	if auth.Token == "" {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Token))
	return "Basic " + encoded
}
