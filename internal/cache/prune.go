package cache

// Prune removes per-target inventory and sync-state entries whose
// TargetKey is not present in configuredKeys, in memory. It does not
// touch repo entries, since a repo surviving under a now-unconfigured
// target is reconciled as a missing-remote deletion, not pruned silently.
// Returns the number of target entries removed.
func (d *Document) Prune(configuredKeys []string) int {
	keep := make(map[string]bool, len(configuredKeys))
	for _, k := range configuredKeys {
		keep[k] = true
	}

	removed := 0
	for key := range d.RepoInventory {
		if !keep[key] {
			delete(d.RepoInventory, key)
			removed++
		}
	}
	for key := range d.TargetSyncState {
		if !keep[key] {
			delete(d.TargetSyncState, key)
		}
	}
	return removed
}

// PruneCacheForTargets loads the document at path, prunes it, and saves it
// back. Returns the number of target entries removed.
func PruneCacheForTargets(path string, configuredKeys []string) (int, error) {
	doc, err := Load(path)
	if err != nil {
		return 0, err
	}
	removed := doc.Prune(configuredKeys)
	if err := Save(path, doc); err != nil {
		return 0, err
	}
	return removed, nil
}
