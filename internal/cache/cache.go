// Package cache implements the sync engine's persistent cache document: a
// single pretty-printed JSON file indexed by TargetKey and repo id, holding
// inventory snapshots, per-target backoff state, and per-repo mirror
// locations. Writes use a temp-file-then-rename pattern so a crash
// mid-write never corrupts the file on disk.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/mirror-sync/internal/model"
)

const inventoryTTLSeconds = 15 * 60

// RepoInventoryEntry is a per-target cached provider listing.
type RepoInventoryEntry struct {
	FetchedAt int64              `json:"fetched_at"`
	Repos     []InventoryRepoRow `json:"repos"`
}

// InventoryRepoRow is the serialized form of a model.RemoteRepo inside an
// inventory snapshot.
type InventoryRepoRow struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	CloneURL      string             `json:"clone_url"`
	DefaultBranch string             `json:"default_branch"`
	Archived      bool               `json:"archived"`
	Provider      model.ProviderKind `json:"provider"`
	Scope         []string           `json:"scope"`
}

// TargetSyncState is the per-target bookkeeping the orchestrator maintains.
type TargetSyncState struct {
	LastSuccess     int64  `json:"last_success,omitempty"`
	BackoffUntil    int64  `json:"backoff_until,omitempty"`
	BackoffAttempts int    `json:"backoff_attempts,omitempty"`
	LastStatus      string `json:"last_status,omitempty"`
}

// RepoCacheEntry records where a given repo id's mirror currently lives on disk.
type RepoCacheEntry struct {
	Name     string             `json:"name"`
	Provider model.ProviderKind `json:"provider"`
	Scope    []string           `json:"scope"`
	Path     string             `json:"path"`
}

// Document is the full persisted cache. Extra carries any top-level JSON
// keys this version of the engine doesn't know about, so round-tripping a
// newer cache file never drops fields (invariant 6 / §6.4).
type Document struct {
	RepoInventory   map[string]RepoInventoryEntry `json:"-"`
	TargetSyncState map[string]TargetSyncState    `json:"-"`
	Repos           map[string]RepoCacheEntry     `json:"-"`

	UpdateLastCheck   *int64  `json:"-"`
	UpdateLastResult  *string `json:"-"`
	UpdateLastVersion *string `json:"-"`
	UpdateLastSource  *string `json:"-"`

	TokenLastCheck  *int64            `json:"-"`
	TokenLastSource *string           `json:"-"`
	TokenStatus     map[string]string `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

// NewDocument returns an empty, ready-to-use cache document.
func NewDocument() *Document {
	return &Document{
		RepoInventory:   map[string]RepoInventoryEntry{},
		TargetSyncState: map[string]TargetSyncState{},
		Repos:           map[string]RepoCacheEntry{},
		TokenStatus:     map[string]string{},
		Extra:           map[string]json.RawMessage{},
	}
}

const (
	keyRepoInventory   = "repo_inventory"
	keyTargetSyncState = "target_sync_state"
	keyRepos           = "repos"
	keyUpdateLastCheck = "update_last_check"
	keyUpdateResult    = "update_last_result"
	keyUpdateVersion   = "update_last_version"
	keyUpdateSource    = "update_last_source"
	keyTokenLastCheck  = "token_last_check"
	keyTokenSource     = "token_last_source"
	keyTokenStatus     = "token_status"
)

var knownKeys = map[string]bool{
	keyRepoInventory: true, keyTargetSyncState: true, keyRepos: true,
	keyUpdateLastCheck: true, keyUpdateResult: true, keyUpdateVersion: true, keyUpdateSource: true,
	keyTokenLastCheck: true, keyTokenSource: true, keyTokenStatus: true,
}

// MarshalJSON flattens the typed fields back alongside any preserved
// extras. The result is compact; Save gets a pretty file by calling
// json.MarshalIndent, which indents this output.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	for k, v := range d.Extra {
		out[k] = v
	}
	out[keyRepoInventory] = d.RepoInventory
	out[keyTargetSyncState] = d.TargetSyncState
	out[keyRepos] = d.Repos
	if d.UpdateLastCheck != nil {
		out[keyUpdateLastCheck] = d.UpdateLastCheck
	}
	if d.UpdateLastResult != nil {
		out[keyUpdateResult] = d.UpdateLastResult
	}
	if d.UpdateLastVersion != nil {
		out[keyUpdateVersion] = d.UpdateLastVersion
	}
	if d.UpdateLastSource != nil {
		out[keyUpdateSource] = d.UpdateLastSource
	}
	if d.TokenLastCheck != nil {
		out[keyTokenLastCheck] = d.TokenLastCheck
	}
	if d.TokenLastSource != nil {
		out[keyTokenSource] = d.TokenLastSource
	}
	if len(d.TokenStatus) > 0 {
		out[keyTokenStatus] = d.TokenStatus
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known top-level keys into typed fields and preserves
// everything else in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = *NewDocument()
	for k, v := range raw {
		if !knownKeys[k] {
			d.Extra[k] = v
			continue
		}
		var err error
		switch k {
		case keyRepoInventory:
			err = json.Unmarshal(v, &d.RepoInventory)
		case keyTargetSyncState:
			err = json.Unmarshal(v, &d.TargetSyncState)
		case keyRepos:
			err = json.Unmarshal(v, &d.Repos)
		case keyUpdateLastCheck:
			err = json.Unmarshal(v, &d.UpdateLastCheck)
		case keyUpdateResult:
			err = json.Unmarshal(v, &d.UpdateLastResult)
		case keyUpdateVersion:
			err = json.Unmarshal(v, &d.UpdateLastVersion)
		case keyUpdateSource:
			err = json.Unmarshal(v, &d.UpdateLastSource)
		case keyTokenLastCheck:
			err = json.Unmarshal(v, &d.TokenLastCheck)
		case keyTokenSource:
			err = json.Unmarshal(v, &d.TokenLastSource)
		case keyTokenStatus:
			err = json.Unmarshal(v, &d.TokenStatus)
		}
		if err != nil {
			return fmt.Errorf("decode cache field %q: %w", k, err)
		}
	}
	if d.RepoInventory == nil {
		d.RepoInventory = map[string]RepoInventoryEntry{}
	}
	if d.TargetSyncState == nil {
		d.TargetSyncState = map[string]TargetSyncState{}
	}
	if d.Repos == nil {
		d.Repos = map[string]RepoCacheEntry{}
	}
	if d.TokenStatus == nil {
		d.TokenStatus = map[string]string{}
	}
	return nil
}

// Load returns an empty document if path does not exist. Any parse error is
// fatal: the caller must refuse to run rather than silently discard state
// (spec §7, "cache load corruption").
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	return doc, nil
}

// Save writes the document atomically: write to a temp file in the same
// directory, fsync, then rename over the destination, so a crash leaves
// either the old or the new contents, never a torn write.
func Save(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp cache file: %w", err)
	}
	return nil
}

// InventoryTTL is exported for callers (the inventory loader) that need to
// judge staleness without importing a magic number.
const InventoryTTL = inventoryTTLSeconds
