package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automator/internal/core/job"
)

// fakeExecutor scripts per-action outcomes keyed by action type. A hook can
// observe each Exec call, which the cancellation test uses to flip the
// record mid-run.
type fakeExecutor struct {
	lane     job.Lane
	outcomes map[string]outcome
	startErr error
	onExec   func(a *job.Action)
	execs    []string
}

type outcome struct {
	result interface{}
	err    error
}

func (f *fakeExecutor) Lane() job.Lane { return f.lane }

func (f *fakeExecutor) StartJob(ctx context.Context, jobID string) (Session, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeSession{exec: f}, nil
}

type fakeSession struct {
	exec   *fakeExecutor
	closed bool
}

func (s *fakeSession) Exec(ctx context.Context, a *job.Action) (interface{}, error) {
	s.exec.execs = append(s.exec.execs, a.Type)
	if s.exec.onExec != nil {
		s.exec.onExec(a)
	}
	o, ok := s.exec.outcomes[a.Type]
	if !ok {
		return map[string]interface{}{"ok": true}, nil
	}
	return o.result, o.err
}

func (s *fakeSession) Close() { s.closed = true }

func seedJob(t *testing.T, store job.Store, types ...string) *job.Job {
	t.Helper()
	actions := make([]job.Action, len(types))
	for i, typ := range types {
		actions[i] = job.Action{Type: typ}
	}
	j := &job.Job{
		ID:        "job-" + t.Name(),
		Name:      t.Name(),
		Status:    job.StatusPending,
		Lane:      job.LaneBrowser,
		Actions:   actions,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), j))
	return j
}

func TestRunCompletesActionsInOrder(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{
		lane: job.LaneBrowser,
		outcomes: map[string]outcome{
			"screenshot": {result: map[string]interface{}{"url": "/files/screenshots/a.png"}},
		},
	}
	j := seedJob(t, store, "navigate", "click", "screenshot")

	require.NoError(t, NewRunner(store, exec).Run(context.Background(), j.ID))
	assert.Equal(t, []string{"navigate", "click", "screenshot"}, exec.execs)

	got, err := store.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.Attempts)
	assert.Len(t, got.Results, 3)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	for i := range got.Actions {
		assert.NotNil(t, got.Actions[i].CompletedAt, "action %d", i)
	}

	require.Len(t, got.Assets, 1)
	assert.Equal(t, "image", got.Assets[0].Type)
	assert.Equal(t, "/files/screenshots/a.png", got.Assets[0].URL)
}

func TestRunActionFailureFailsWholeJob(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{
		lane: job.LaneBrowser,
		outcomes: map[string]outcome{
			"click": {err: job.NewActionError(job.CodeBrowserError, "no element matches #go")},
		},
	}
	j := seedJob(t, store, "navigate", "click", "screenshot")

	err := NewRunner(store, exec).Run(context.Background(), j.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "terminal action failure must not be redelivered")
	assert.Equal(t, []string{"navigate", "click"}, exec.execs, "no action runs past the failure")

	got, errGet := store.Get(context.Background(), j.ID)
	require.NoError(t, errGet)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, "no element matches #go", got.Error)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.Actions[1].Error)
	assert.Equal(t, job.CodeBrowserError, got.Actions[1].Error.Code)
	assert.Nil(t, got.Actions[2].StartedAt)
	_, ran := got.Results[2]
	assert.False(t, ran)
}

func TestRunStopsWhenCancelledMidJob(t *testing.T) {
	store := job.NewMemoryStore()
	ctx := context.Background()
	exec := &fakeExecutor{lane: job.LaneBrowser}
	j := seedJob(t, store, "navigate", "click", "screenshot")

	// Cancel between the first and second action, the way a control call
	// would while the worker holds the lease.
	exec.onExec = func(a *job.Action) {
		if a.Type == "navigate" {
			cur, err := store.Get(ctx, j.ID)
			require.NoError(t, err)
			cur.Status = job.StatusCancelled
			require.NoError(t, store.Save(ctx, cur))
		}
	}

	require.NoError(t, NewRunner(store, exec).Run(ctx, j.ID))
	assert.Equal(t, []string{"navigate"}, exec.execs)

	got, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, got.Status, "worker must not overwrite the cancellation")
}

func TestRunStopsWhenDeletedMidJob(t *testing.T) {
	store := job.NewMemoryStore()
	ctx := context.Background()
	exec := &fakeExecutor{lane: job.LaneBrowser}
	j := seedJob(t, store, "navigate", "click")

	exec.onExec = func(a *job.Action) {
		if a.Type == "navigate" {
			require.NoError(t, store.Delete(ctx, j.ID))
		}
	}

	require.NoError(t, NewRunner(store, exec).Run(ctx, j.ID))
	assert.Equal(t, []string{"navigate"}, exec.execs)

	_, err := store.Get(ctx, j.ID)
	assert.True(t, errors.Is(err, job.ErrNotFound), "no resurrection after delete")
}

func TestRunMissingJobAcksQuietly(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{lane: job.LaneBrowser}

	assert.NoError(t, NewRunner(store, exec).Run(context.Background(), "never-existed"))
	assert.Empty(t, exec.execs)
}

func TestRunTerminalJobIgnored(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{lane: job.LaneBrowser}
	j := seedJob(t, store, "navigate")
	j.Status = job.StatusCompleted
	require.NoError(t, store.Save(context.Background(), j))

	assert.NoError(t, NewRunner(store, exec).Run(context.Background(), j.ID))
	assert.Empty(t, exec.execs)
}

func TestRunStalledRedeliveryRestartsAttempt(t *testing.T) {
	store := job.NewMemoryStore()
	ctx := context.Background()
	exec := &fakeExecutor{lane: job.LaneBrowser}
	j := seedJob(t, store, "navigate", "click")

	// Simulate a worker that died after the first action.
	started := time.Now().UTC()
	j.Status = job.StatusProcessing
	j.Attempts = 1
	j.StartedAt = &started
	j.Progress = 50
	j.Results = map[int]interface{}{0: "stale"}
	j.Actions[0].Result = "stale"
	require.NoError(t, store.Save(ctx, j))

	require.NoError(t, NewRunner(store, exec).Run(ctx, j.ID))
	assert.Equal(t, []string{"navigate", "click"}, exec.execs, "restart reruns from the first action")

	got, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Len(t, got.Results, 2)
}

func TestRunLaneMismatchFailsJob(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{lane: job.LaneRemote}
	j := seedJob(t, store, "navigate")

	err := NewRunner(store, exec).Run(context.Background(), j.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	got, errGet := store.Get(context.Background(), j.ID)
	require.NoError(t, errGet)
	assert.Equal(t, job.StatusFailed, got.Status)
}

func TestRunStartJobFailure(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{lane: job.LaneBrowser, startErr: errors.New("browser crashed")}
	j := seedJob(t, store, "navigate")

	err := NewRunner(store, exec).Run(context.Background(), j.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	got, errGet := store.Get(context.Background(), j.ID)
	require.NoError(t, errGet)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "execution context unavailable")
}

func TestHandleMalformedPayload(t *testing.T) {
	store := job.NewMemoryStore()
	exec := &fakeExecutor{lane: job.LaneBrowser}
	task := asynq.NewTask("browser:job", []byte("{not json"))

	err := NewRunner(store, exec).Handle(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestToActionErrorMapping(t *testing.T) {
	ae := toActionError(job.NewActionError(job.CodeRemoteError, "502 from sidecar"))
	assert.Equal(t, job.CodeRemoteError, ae.Code)

	ae = toActionError(context.DeadlineExceeded)
	assert.Equal(t, job.CodeTimeout, ae.Code)

	ae = toActionError(errors.New("boom"))
	assert.Equal(t, job.CodeEngineError, ae.Code)
}
