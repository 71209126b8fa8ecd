// Package statusemitter carries the per-target SyncProgress event stream
// from the orchestrator to a subscriber: TargetBegin and TargetEnd bracket
// every target exactly once, and Started/Finished fire once per repo in
// between. The stream itself never drops or coalesces an event; State is
// a separate, optional helper a subscriber can use to debounce its own
// redraws instead of handling every repo event individually.
package statusemitter

import "time"

const flushInterval = 250 * time.Millisecond

// Kind identifies which SyncProgress variant a Progress event carries.
type Kind string

const (
	KindTargetBegin Kind = "target_begin"
	KindStarted     Kind = "started"
	KindFinished    Kind = "finished"
	KindTargetEnd   Kind = "target_end"
)

// EndSummary carries the totals known once a target's run has concluded,
// whether or not any repo work actually happened.
type EndSummary struct {
	Status    string
	Processed int
	Total     int
}

// Progress is one event in a target's SyncProgress stream.
type Progress struct {
	Kind      Kind
	TargetKey string
	RepoID    string
	RepoName  string
	End       EndSummary
}

// Subscriber receives the full-fidelity SyncProgress stream. Implementations
// must not block the caller for long; a slow renderer should buffer
// internally.
type Subscriber func(Progress)

func emit(sub Subscriber, p Progress) {
	if sub != nil {
		sub(p)
	}
}

// Begin emits TargetBegin for targetKey. Every call must be paired with
// exactly one End call for the same key, on every return path, even when
// no repo work happens (a backoff skip still brackets with Begin/End).
func Begin(sub Subscriber, targetKey string) {
	emit(sub, Progress{Kind: KindTargetBegin, TargetKey: targetKey})
}

// End emits TargetEnd for targetKey, carrying the target's final status.
func End(sub Subscriber, targetKey string, summary EndSummary) {
	emit(sub, Progress{Kind: KindTargetEnd, TargetKey: targetKey, End: summary})
}

// Started emits Started for one repo within targetKey.
func Started(sub Subscriber, targetKey, repoID, repoName string) {
	emit(sub, Progress{Kind: KindStarted, TargetKey: targetKey, RepoID: repoID, RepoName: repoName})
}

// Finished emits Finished for one repo within targetKey.
func Finished(sub Subscriber, targetKey, repoID, repoName string) {
	emit(sub, Progress{Kind: KindFinished, TargetKey: targetKey, RepoID: repoID, RepoName: repoName})
}

// State tracks one target's progress between debounced flushes. It is not
// part of the SyncProgress stream itself — a subscriber that wants a
// throttled processed/total snapshot instead of raw per-repo events can
// feed Finished notifications into one of these.
type State struct {
	TargetKey      string
	TotalRepos     int
	ProcessedRepos int
	dirty          bool
	lastFlush      time.Time
}

// NewState starts a target's progress tracker.
func NewState(targetKey string, totalRepos int, now time.Time) *State {
	return &State{TargetKey: targetKey, TotalRepos: totalRepos, lastFlush: now}
}

// DebounceSubscriber receives a debounced progress snapshot from State.
type DebounceSubscriber func(State)

// RecordProgress marks one more repo processed and flushes to sub if the
// debounce interval has elapsed since the last flush.
func (s *State) RecordProgress(now time.Time, sub DebounceSubscriber) {
	s.ProcessedRepos++
	s.dirty = true
	s.maybeFlush(now, sub)
}

func (s *State) maybeFlush(now time.Time, sub DebounceSubscriber) {
	if !s.dirty {
		return
	}
	if now.Sub(s.lastFlush) < flushInterval {
		return
	}
	s.flush(now, sub)
}

func (s *State) flush(now time.Time, sub DebounceSubscriber) {
	if sub != nil {
		sub(*s)
	}
	s.dirty = false
	s.lastFlush = now
}

// Flush always emits the current state regardless of the debounce
// interval, for use at target end so the terminal progress is never lost
// to debouncing.
func (s *State) Flush(now time.Time, sub DebounceSubscriber) {
	s.flush(now, sub)
}
