package cache

// RecordTargetSuccess clears backoff state and stamps the last successful run.
func (d *Document) RecordTargetSuccess(targetKey string, now int64) {
	state := d.TargetSyncState[targetKey]
	state.LastSuccess = now
	state.BackoffUntil = 0
	state.BackoffAttempts = 0
	d.TargetSyncState[targetKey] = state
}

// RecordTargetFailure increments the attempt counter and pushes backoff_until out.
func (d *Document) RecordTargetFailure(targetKey string, now int64) {
	state := d.TargetSyncState[targetKey]
	state.BackoffAttempts++
	state.BackoffUntil = now + ComputeBackoffDelay(state.BackoffAttempts)
	d.TargetSyncState[targetKey] = state
}

// BackoffUntil returns the backoff deadline for a target, if any.
func (d *Document) BackoffUntil(targetKey string) (int64, bool) {
	state, ok := d.TargetSyncState[targetKey]
	if !ok || state.BackoffUntil == 0 {
		return 0, false
	}
	return state.BackoffUntil, true
}

// SetLastStatus records the most recent human-readable status for a target
// (e.g. "skipped: backoff", "ok", "failed").
func (d *Document) SetLastStatus(targetKey, status string) {
	state := d.TargetSyncState[targetKey]
	state.LastStatus = status
	d.TargetSyncState[targetKey] = state
}
