package engine

import (
	"context"
	"fmt"

	"automator/internal/core/job"
)

// Executor is one lane's execution backend. The runner acquires a fresh
// Session per job and releases it when the job finishes, success or
// failure, so no page or connection state leaks across jobs.
type Executor interface {
	Lane() job.Lane
	StartJob(ctx context.Context, jobID string) (Session, error)
}

// Session executes a job's actions one at a time against lane-scoped
// state (an open page for the browser lane, an HTTP client for the
// remote lane).
type Session interface {
	Exec(ctx context.Context, a *job.Action) (interface{}, error)
	Close()
}

// VerifyRegistry checks at startup that a lane's handler registry covers
// every action type the lane owns and nothing else, so an unmapped type is
// a configuration error rather than a silent runtime no-op.
func VerifyRegistry(lane job.Lane, registered func(actionType string) bool) error {
	for _, t := range job.ActionTypes(lane) {
		if !registered(t) {
			return fmt.Errorf("%s lane registry missing handler for %q", lane, t)
		}
	}
	return nil
}
