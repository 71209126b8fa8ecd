// Package workerpool bounds the concurrent execution of per-repo sync jobs
// and emits an ordered Started/Finished event stream for each.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/mirror-sync/internal/model"
	"github.com/kraklabs/mirror-sync/internal/planner"
)

// SyncOutcome is the result of one repo's git-sync job.
type SyncOutcome string

const (
	OutcomeAdded     SyncOutcome = "added"
	OutcomeUpdated   SyncOutcome = "updated"
	OutcomeUnchanged SyncOutcome = "unchanged"
)

// Job runs the git-sync capability against one repo/path pair.
type Job func(ctx context.Context, item planner.WorkItem) (SyncOutcome, error)

// Event is one entry in the ordered per-repo progress stream.
type Event struct {
	Kind    EventKind
	RepoID  string
	Name    string
	Outcome SyncOutcome
	Err     error
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
)

// Result is the terminal outcome recorded for one work item.
type Result struct {
	Repo    model.RemoteRepo
	Path    string
	Outcome SyncOutcome
	Err     error
}

// Run executes job for every item with at most parallelism concurrent in
// flight, sending Started then Finished on events for each item (in that
// per-item order; items themselves may interleave). If ctx is canceled,
// no new jobs start; jobs already running are allowed to finish and still
// emit their Finished event, matching the "drain in-flight jobs" cancellation
// contract. events may be nil to run with no subscriber.
func Run(ctx context.Context, items []planner.WorkItem, parallelism int, job Job, events chan<- Event) []Result {
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(items) && len(items) > 0 {
		parallelism = len(items)
	}

	results := make([]Result, len(items))
	sem := semaphore.NewWeighted(int64(parallelism))
	done := make(chan struct{}, len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			results[i] = Result{Repo: item.Repo, Path: item.Path, Err: ctx.Err()}
			done <- struct{}{}
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Repo: item.Repo, Path: item.Path, Err: ctx.Err()}
			done <- struct{}{}
			continue
		}
		send(events, Event{Kind: EventStarted, RepoID: item.Repo.ID, Name: item.Repo.Name})
		go func(i int, item planner.WorkItem) {
			defer sem.Release(1)
			outcome, err := job(ctx, item)
			results[i] = Result{Repo: item.Repo, Path: item.Path, Outcome: outcome, Err: err}
			send(events, Event{Kind: EventFinished, RepoID: item.Repo.ID, Name: item.Repo.Name, Outcome: outcome, Err: err})
			done <- struct{}{}
		}(i, item)
	}

	for range items {
		<-done
	}
	return results
}

func send(events chan<- Event, e Event) {
	if events != nil {
		events <- e
	}
}
