package job

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"automator/internal/logger"
	"automator/internal/platform/queue"
)

// SubmitRequest is the job submission envelope.
type SubmitRequest struct {
	Name        string                 `json:"name" validate:"required"`
	Description string                 `json:"description,omitempty"`
	Priority    int                    `json:"priority" validate:"gte=-100,lte=100"`
	Actions     []ActionInput          `json:"actions" validate:"required,min=1,dive"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type ActionInput struct {
	Type   string                 `json:"type" validate:"required"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Service owns the job lifecycle: submission, lookup, and the control
// operations that mutate store and lane queue together under the state
// machine's rules.
type Service struct {
	store    Store
	lanes    map[Lane]queue.Lane
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(store Store, lanes map[Lane]queue.Lane) *Service {
	return &Service{
		store:    store,
		lanes:    lanes,
		validate: validator.New(),
		log:      logger.New("JobService"),
	}
}

// Submit validates, classifies and persists a job, then enqueues a
// reference on the owning lane. Nothing is persisted when validation fails.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	actions := make([]Action, len(req.Actions))
	for i, in := range req.Actions {
		actions[i] = Action{Type: in.Type, Params: in.Params}
	}
	lane, err := Classify(actions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := ValidateActions(lane, actions); err != nil {
		return nil, err
	}

	j := &Job{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
		Priority:    req.Priority,
		Status:      StatusPending,
		Lane:        lane,
		Actions:     actions,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, j); err != nil {
		s.log.LogInfra("persist job failed", err)
		return nil, err
	}
	if err := s.enqueue(ctx, j); err != nil {
		// No orphaned pending records: either the job is queued or it
		// does not exist.
		_ = s.store.Delete(ctx, j.ID)
		return nil, err
	}
	s.log.LogInfof("job %s (%s) submitted to %s lane with %d actions", j.ID, j.Name, j.Lane, len(j.Actions))
	return j, nil
}

func (s *Service) enqueue(ctx context.Context, j *Job) error {
	lane, ok := s.lanes[j.Lane]
	if !ok {
		return fmt.Errorf("no queue configured for lane %s", j.Lane)
	}
	token, err := lane.Enqueue(ctx, queue.Ref{JobID: j.ID}, queue.Options{Priority: j.Priority})
	if err != nil {
		return err
	}
	j.QueueToken = QueueToken{Queue: token.Queue, TaskID: token.TaskID}
	return s.store.Save(ctx, j)
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int, status Status) ([]*Job, error) {
	return s.store.List(ctx, limit, status)
}

// Cancel moves a pending or processing job to cancelled. A still-queued
// item is removed so no worker ever sees it; an in-flight worker observes
// the cancelled status on its next persistence read and stops between
// actions.
func (s *Service) Cancel(ctx context.Context, id string) (*Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusPending && j.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: cannot cancel %s job", ErrIllegalTransition, j.Status)
	}
	if j.Status == StatusPending {
		s.removeFromLane(ctx, j)
	}
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	if err := s.store.Save(ctx, j); err != nil {
		return nil, err
	}
	s.log.LogInfof("job %s cancelled", id)
	return j, nil
}

// Retry re-queues a failed job on the lane it was first routed to. Action
// types cannot change after creation, so classification is not repeated.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusFailed {
		return nil, fmt.Errorf("%w: cannot retry %s job", ErrIllegalTransition, j.Status)
	}
	j.ResetForRetry()
	if err := s.store.Save(ctx, j); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, j); err != nil {
		return nil, err
	}
	s.log.LogInfof("job %s re-queued on %s lane", id, j.Lane)
	return j, nil
}

// Delete removes the persisted record. A pending job is dequeued first;
// for an in-flight job the caller is expected to prefer cancel, and any
// late worker write simply targets a missing record.
func (s *Service) Delete(ctx context.Context, id string) error {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status == StatusPending {
		s.removeFromLane(ctx, j)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.LogInfof("job %s deleted", id)
	return nil
}

func (s *Service) removeFromLane(ctx context.Context, j *Job) {
	lane, ok := s.lanes[j.Lane]
	if !ok {
		return
	}
	removed, err := lane.Remove(ctx, queue.Token{Queue: j.QueueToken.Queue, TaskID: j.QueueToken.TaskID})
	if err != nil {
		s.log.LogWarnf("dequeue of job %s failed: %v", j.ID, err)
		return
	}
	if !removed {
		s.log.LogDebugf("job %s no longer queued, skipping dequeue", j.ID)
	}
}

// LaneCounts reports queue introspection counts per lane.
func (s *Service) LaneCounts(ctx context.Context) (map[Lane]queue.Counts, error) {
	out := make(map[Lane]queue.Counts, len(s.lanes))
	for name, lane := range s.lanes {
		c, err := lane.Counts(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = c
	}
	return out, nil
}
