package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"automator/internal/core/job"
	"automator/internal/logger"
	"automator/internal/platform/queue"
)

// Runner executes queued jobs for one lane. Each invocation of Run holds
// the lane queue's lease on the job, which makes it the job's single
// writer for the duration of the attempt.
type Runner struct {
	store job.Store
	exec  Executor
	log   *logger.Logger
}

func NewRunner(store job.Store, exec Executor) *Runner {
	return &Runner{
		store: store,
		exec:  exec,
		log:   logger.New("Runner:" + string(exec.Lane())),
	}
}

// Handle is the asynq task handler for the lane. A returned error that
// wraps asynq.SkipRetry marks the queue item failed without redelivery;
// a plain error leaves it to the queue's attempt/backoff policy.
func (r *Runner) Handle(ctx context.Context, task *asynq.Task) error {
	var ref queue.Ref
	if err := json.Unmarshal(task.Payload(), &ref); err != nil {
		return fmt.Errorf("malformed task payload: %v: %w", err, asynq.SkipRetry)
	}
	return r.Run(ctx, ref.JobID)
}

// Run executes one delivery attempt of a job: claim, run actions strictly
// in order with per-action bookkeeping, then write the terminal state.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	j, err := r.store.Get(ctx, jobID)
	if errors.Is(err, job.ErrNotFound) {
		// Deleted while queued, or the store lost the record; nothing to do.
		r.log.LogWarnf("job %s not found, abandoning queue item", jobID)
		return nil
	}
	if err != nil {
		r.log.LogInfra("load job "+jobID, err)
		return err
	}

	if j.Lane != r.exec.Lane() {
		// Classification is authoritative; a foreign job here means a
		// routing bug, not something this lane should try to execute.
		r.failJob(ctx, j, &job.ActionError{
			Code:    job.CodeEngineError,
			Message: fmt.Sprintf("job owned by %s lane delivered to %s lane", j.Lane, r.exec.Lane()),
		})
		return fmt.Errorf("lane mismatch for job %s: %w", jobID, asynq.SkipRetry)
	}

	switch j.Status {
	case job.StatusPending:
	case job.StatusProcessing:
		// Lease expired on a previous worker mid-job; start the attempt
		// over with clean per-action state.
		r.log.LogWarnf("job %s redelivered while processing, restarting attempt", jobID)
		j.ResetExecution()
	default:
		r.log.LogDebugf("job %s already %s, ignoring delivery", jobID, j.Status)
		return nil
	}

	now := time.Now().UTC()
	j.Status = job.StatusProcessing
	j.StartedAt = &now
	j.Attempts++
	if err := r.store.Save(ctx, j); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil
		}
		r.log.LogInfra("claim job "+jobID, err)
		return err
	}

	sess, err := r.exec.StartJob(ctx, j.ID)
	if err != nil {
		r.failJob(ctx, j, &job.ActionError{
			Code:    job.CodeEngineError,
			Message: fmt.Sprintf("execution context unavailable: %v", err),
		})
		return fmt.Errorf("start session for job %s: %v: %w", jobID, err, asynq.SkipRetry)
	}
	defer sess.Close()

	total := len(j.Actions)
	for i := range j.Actions {
		if stop := r.cancelled(ctx, j.ID); stop {
			return nil
		}

		a := &j.Actions[i]
		started := time.Now().UTC()
		a.StartedAt = &started
		if err := r.store.Save(ctx, j); err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return nil
			}
			r.log.LogInfra("persist action start", err)
			return err
		}

		result, execErr := sess.Exec(ctx, a)
		done := time.Now().UTC()
		a.CompletedAt = &done
		a.DurationMs = done.Sub(started).Milliseconds()

		if execErr != nil {
			a.Error = toActionError(execErr)
			r.failJob(ctx, j, a.Error)
			r.log.LogErrorf("job %s failed at action %d (%s): %s", j.ID, i, a.Type, a.Error.Message)
			return fmt.Errorf("action %d (%s) failed: %v: %w", i, a.Type, execErr, asynq.SkipRetry)
		}

		// Cancel or delete issued while the action ran wins over its result;
		// re-check before writing so the terminal status is not overwritten.
		if stop := r.cancelled(ctx, j.ID); stop {
			return nil
		}

		a.Result = result
		if j.Results == nil {
			j.Results = make(map[int]interface{}, total)
		}
		j.Results[i] = result
		if kind := job.AssetKind(a.Type); kind != "" {
			if url := assetURL(result); url != "" {
				j.Assets = append(j.Assets, job.Asset{Type: kind, URL: url, CreatedAt: done})
			}
		}
		j.Progress = 100 * (i + 1) / total
		if err := r.store.Save(ctx, j); err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return nil
			}
			r.log.LogInfra("persist action result", err)
			return err
		}
	}

	end := time.Now().UTC()
	j.Status = job.StatusCompleted
	j.Progress = 100
	j.CompletedAt = &end
	if err := r.store.Save(ctx, j); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil
		}
		r.log.LogInfra("persist completion", err)
		return err
	}
	r.log.LogInfof("job %s completed: %d actions in %dms", j.ID, total, end.Sub(*j.StartedAt).Milliseconds())
	return nil
}

// cancelled re-reads the record between actions; a missing or terminal
// record is the cooperative signal to stop executing this job.
func (r *Runner) cancelled(ctx context.Context, jobID string) bool {
	cur, err := r.store.Get(ctx, jobID)
	if errors.Is(err, job.ErrNotFound) {
		r.log.LogInfof("job %s deleted mid-run, stopping", jobID)
		return true
	}
	if err != nil {
		// Store unreachable: keep going and let the next persistence
		// write surface the failure.
		return false
	}
	if cur.Status != job.StatusProcessing {
		r.log.LogInfof("job %s is now %s, stopping", jobID, cur.Status)
		return true
	}
	return false
}

func (r *Runner) failJob(ctx context.Context, j *job.Job, cause *job.ActionError) {
	now := time.Now().UTC()
	j.Status = job.StatusFailed
	j.Error = cause.Message
	j.CompletedAt = &now
	if err := r.store.Save(ctx, j); err != nil && !errors.Is(err, job.ErrNotFound) {
		r.log.LogInfra("persist failure for job "+j.ID, err)
	}
}

func toActionError(err error) *job.ActionError {
	var ae *job.ActionError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &job.ActionError{Code: job.CodeTimeout, Message: err.Error()}
	}
	return &job.ActionError{Code: job.CodeEngineError, Message: err.Error()}
}

func assetURL(result interface{}) string {
	m, ok := result.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, k := range []string{"url", "path"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
