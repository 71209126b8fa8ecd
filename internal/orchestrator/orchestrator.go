// Package orchestrator implements the sync engine's top-level algorithm:
// acquire the run lock, load the cache, and for each configured target
// load its inventory, filter by day bucket, reconcile renames and
// deletions, and dispatch the worker pool — the cache document is this
// package's exclusive responsibility; no other package ever saves it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/mirror-sync/internal/audit"
	"github.com/kraklabs/mirror-sync/internal/cache"
	"github.com/kraklabs/mirror-sync/internal/inventory"
	"github.com/kraklabs/mirror-sync/internal/lockmanager"
	"github.com/kraklabs/mirror-sync/internal/metrics"
	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/planner"
	"github.com/kraklabs/mirror-sync/internal/provider"
	"github.com/kraklabs/mirror-sync/internal/reconcile"
	"github.com/kraklabs/mirror-sync/internal/scheduler"
	"github.com/kraklabs/mirror-sync/internal/statusemitter"
	"github.com/kraklabs/mirror-sync/internal/workerpool"
)

// Options configures one invocation of Run.
type Options struct {
	Targets     []model.ProviderTarget
	Root        string
	Force       bool
	Refresh     bool
	Policy      reconcile.MissingRemotePolicy
	Parallelism int
	Subscriber  statusemitter.Subscriber
	Prompt      reconcile.PromptFunc
}

// TargetSummary reports what happened for one target during a run.
type TargetSummary struct {
	TargetKey       string
	Status          string
	Added           int
	Updated         int
	Unchanged       int
	Failed          int
	MissingArchived int
	MissingRemoved  int
	MissingSkipped  int
}

// SyncSummary is the aggregated result of one Run invocation.
type SyncSummary struct {
	Status  string
	Targets []TargetSummary
}

// GitSyncer mirrors one (path, cloneURL) pair to disk, authenticating with
// auth when its Token is non-empty. gitsync.GitSync satisfies this
// implicitly; tests substitute a fake to avoid shelling out to the real
// git binary.
type GitSyncer interface {
	Sync(ctx context.Context, path, cloneURL string, auth model.RepoAuth) (workerpool.SyncOutcome, error)
}

// Orchestrator wires the sync engine's collaborators together. All fields
// are required except Audit, Auth, Now, Metrics, and Log: the first three
// default to a no-op sink, an always-empty credential, and time.Now
// respectively; a nil Metrics records no metrics and a nil Log disables
// the planner's and reconciler's logging.
type Orchestrator struct {
	LockPath  string
	CachePath string

	Inventory *inventory.Loader
	GitSync   GitSyncer
	Metrics   *metrics.Metrics
	Audit     audit.Sink
	Auth      func(target model.ProviderTarget) (model.RepoAuth, error)
	Log       *slog.Logger
	Now       func() time.Time
}

// Run performs one full invocation per spec 4.I. A lock-contention return
// yields SyncSummary{Status: "skipped"} with a nil error; a cache load
// failure is fatal and returned as an error, since proceeding would risk
// destructive reconciliation against a document the engine cannot trust.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*SyncSummary, error) {
	now := o.now()

	lock, err := lockmanager.TryAcquire(o.LockPath)
	if err != nil {
		if err == lockmanager.ErrLocked {
			o.emitAudit(audit.Record{Status: audit.StatusLockContention, Detail: "another run holds " + o.LockPath})
			return &SyncSummary{Status: "skipped"}, nil
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Release()

	doc, err := cache.Load(o.CachePath)
	if err != nil {
		o.emitAudit(audit.Record{Status: audit.StatusCacheCorrupt, Detail: err.Error()})
		return nil, fmt.Errorf("load cache: %w", err)
	}

	configuredKeys := make([]string, len(opts.Targets))
	for i, t := range opts.Targets {
		configuredKeys[i] = t.TargetKey()
	}
	doc.Prune(configuredKeys)

	summary := &SyncSummary{Status: "completed"}
	for _, target := range opts.Targets {
		summary.Targets = append(summary.Targets, o.runTarget(ctx, doc, target, opts, now))
	}

	if err := cache.Save(o.CachePath, doc); err != nil {
		return nil, fmt.Errorf("save cache: %w", err)
	}
	return summary, nil
}

// runTarget emits TargetBegin before any other work and guarantees a
// matching TargetEnd on every return path, including a pure backoff skip
// with no worker activity at all, per the bracketed SyncProgress stream
// contract every target participates in.
func (o *Orchestrator) runTarget(ctx context.Context, doc *cache.Document, target model.ProviderTarget, opts Options, now time.Time) (ts TargetSummary) {
	key := target.TargetKey()
	ts = TargetSummary{TargetKey: key}
	nowUnix := now.Unix()
	defer o.observeTargetDuration(target, o.now())

	statusemitter.Begin(opts.Subscriber, key)
	var processed, total int
	defer func() {
		statusemitter.End(opts.Subscriber, key, statusemitter.EndSummary{Status: ts.Status, Processed: processed, Total: total})
	}()

	if !opts.Force {
		if until, ok := doc.BackoffUntil(key); ok && until > nowUnix {
			ts.Status = "skipped: backoff"
			doc.SetLastStatus(key, ts.Status)
			o.observeBackoffRemaining(key, until-nowUnix)
			o.emitAudit(audit.Record{TargetKey: key, Status: audit.StatusSuccess, Detail: ts.Status})
			return ts
		}
	}
	o.observeBackoffRemaining(key, 0)

	repos, fromCache, err := o.Inventory.Load(ctx, doc, target, opts.Refresh, nowUnix)
	o.observeInventoryRequest(target, fromCache)
	if err != nil {
		doc.RecordTargetFailure(key, nowUnix)
		ts.Status = "failed: inventory"
		doc.SetLastStatus(key, ts.Status)
		o.emitAudit(audit.Record{TargetKey: key, Status: classifyProviderError(err), Detail: err.Error()})
		o.observeTargetResult(target, ts.Status)
		return ts
	}

	currentIDs := make([]string, len(repos))
	for i, r := range repos {
		currentIDs[i] = r.ID
	}

	eligible := repos
	if !opts.Force {
		bucket := scheduler.CurrentDayBucket(o.now)
		eligible = make([]model.RemoteRepo, 0, len(repos))
		for _, r := range repos {
			if scheduler.BucketForRepoID(r.ID) == bucket {
				eligible = append(eligible, r)
			}
		}
	}

	items := planner.BuildWorkItems(doc, opts.Root, eligible, o.Log)

	missing := reconcile.DetectMissing(doc, currentIDs)
	reconcileSummary := reconcile.Reconcile(doc, opts.Root, missing, opts.Policy, opts.Prompt, o.Log)
	ts.MissingArchived = reconcileSummary.Archived
	ts.MissingRemoved = reconcileSummary.Removed
	ts.MissingSkipped = reconcileSummary.Skipped
	o.observeDeletions(opts.Policy, reconcileSummary)

	total = len(items)

	repoAuth, err := o.authFor(target)
	if err != nil {
		doc.RecordTargetFailure(key, nowUnix)
		ts.Status = "failed: auth"
		doc.SetLastStatus(key, ts.Status)
		o.emitAudit(audit.Record{TargetKey: key, Status: audit.StatusConfigError, Detail: err.Error()})
		o.observeTargetResult(target, ts.Status)
		return ts
	}

	events := make(chan workerpool.Event, 2*len(items)+1)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			switch ev.Kind {
			case workerpool.EventStarted:
				statusemitter.Started(opts.Subscriber, key, ev.RepoID, ev.Name)
			case workerpool.EventFinished:
				processed++
				statusemitter.Finished(opts.Subscriber, key, ev.RepoID, ev.Name)
			}
		}
	}()

	job := func(ctx context.Context, item planner.WorkItem) (workerpool.SyncOutcome, error) {
		return o.GitSync.Sync(ctx, item.Path, item.Repo.CloneURL, repoAuth)
	}
	results := workerpool.Run(ctx, items, effectiveParallelism(opts.Parallelism, len(items)), job, events)
	close(events)
	<-drained

	for _, r := range results {
		if r.Err != nil {
			ts.Failed++
			continue
		}
		doc.Repos[r.Repo.ID] = cache.RepoCacheEntry{
			Name:     r.Repo.Name,
			Provider: r.Repo.Provider,
			Scope:    r.Repo.Scope.Segments,
			Path:     r.Path,
		}
		switch r.Outcome {
		case workerpool.OutcomeAdded:
			ts.Added++
		case workerpool.OutcomeUpdated:
			ts.Updated++
		case workerpool.OutcomeUnchanged:
			ts.Unchanged++
		}
		o.observeOutcome(target, r.Outcome)
	}

	if ts.Failed == 0 {
		doc.RecordTargetSuccess(key, nowUnix)
		ts.Status = "ok"
		o.emitAudit(audit.Record{TargetKey: key, Status: audit.StatusSuccess, Detail: ts.Status})
	} else {
		doc.RecordTargetFailure(key, nowUnix)
		ts.Status = "failed"
		o.emitAudit(audit.Record{TargetKey: key, Status: audit.StatusTargetFailure, Detail: fmt.Sprintf("%d of %d repos failed", ts.Failed, len(items))})
	}
	doc.SetLastStatus(key, ts.Status)
	o.observeTargetResult(target, ts.Status)
	return ts
}

func effectiveParallelism(configured, itemCount int) int {
	if configured < 1 {
		configured = 4
	}
	if itemCount > 0 && configured > itemCount {
		return itemCount
	}
	return configured
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) emitAudit(r audit.Record) {
	if o.Audit != nil {
		o.Audit.Emit(r)
	}
}

// authFor resolves the credential gitsync attaches to clone/fetch for
// target. A nil Auth field is a deliberate default for fixtures and tests
// that never exercise a private repo: it yields an empty credential
// rather than failing the target.
func (o *Orchestrator) authFor(target model.ProviderTarget) (model.RepoAuth, error) {
	if o.Auth == nil {
		return model.RepoAuth{}, nil
	}
	return o.Auth(target)
}

// classifyProviderError maps an inventory-load failure to the audit
// status its error table names: a provider 401/403 is surfaced as
// StatusProviderForbidden, a misconfigured target (bad scope, missing
// token) as StatusConfigError, and anything else as the generic
// StatusTargetFailure.
func classifyProviderError(err error) audit.Status {
	switch {
	case errors.Is(err, provider.ErrForbidden):
		return audit.StatusProviderForbidden
	case errors.Is(err, provider.ErrConfig):
		return audit.StatusConfigError
	default:
		return audit.StatusTargetFailure
	}
}

func (o *Orchestrator) observeInventoryRequest(target model.ProviderTarget, fromCache bool) {
	if o.Metrics == nil {
		return
	}
	source := "fresh"
	if fromCache {
		source = "cache"
	}
	o.Metrics.InventoryRequests.WithLabelValues(string(target.Kind), source).Inc()
}

func (o *Orchestrator) observeOutcome(target model.ProviderTarget, outcome workerpool.SyncOutcome) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.SyncOutcomes.WithLabelValues(string(target.Kind), string(outcome)).Inc()
}

func (o *Orchestrator) observeTargetResult(target model.ProviderTarget, status string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.TargetResult.WithLabelValues(string(target.Kind), status).Inc()
}

func (o *Orchestrator) observeDeletions(policy reconcile.MissingRemotePolicy, s reconcile.Summary) {
	if o.Metrics == nil {
		return
	}
	total := s.Archived + s.Removed + s.Skipped
	if total > 0 {
		o.Metrics.DeletionsTotal.WithLabelValues(string(policy)).Add(float64(total))
	}
}

func (o *Orchestrator) observeBackoffRemaining(key string, seconds int64) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.TargetBackoff.WithLabelValues(key).Set(float64(seconds))
}

func (o *Orchestrator) observeTargetDuration(target model.ProviderTarget, start time.Time) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.TargetDuration.WithLabelValues(string(target.Kind)).Observe(o.now().Sub(start).Seconds())
}
