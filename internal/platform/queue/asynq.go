package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"automator/internal/logger"
	rds "automator/internal/platform/redis"
)

// Completed queue items are kept this long so introspection counts
// include them; without retention asynq discards them on ack.
const completedRetention = 24 * time.Hour

// AsynqLane backs one execution lane with three asynq queues so job
// priority governs dequeue order: ready items drain high before default
// before low, ties FIFO within a queue. Leases, stall redelivery and
// per-item delivery attempts are asynq's.
type AsynqLane struct {
	name        string
	client      *asynq.Client
	inspector   *asynq.Inspector
	maxAttempts int
	log         *logger.Logger
}

// maxAttempts bounds total deliveries of an item, first one included.
func NewAsynqLane(name string, r *rds.Service, maxAttempts int) *AsynqLane {
	return &AsynqLane{
		name:        name,
		client:      asynq.NewClient(r.AsynqRedisOpt()),
		inspector:   asynq.NewInspector(r.AsynqRedisOpt()),
		maxAttempts: maxAttempts,
		log:         logger.New("Queue:" + name),
	}
}

// TaskType is the asynq task type the lane's server handles.
func (l *AsynqLane) TaskType() string { return l.name + ":job" }

// Queues returns the lane's sub-queues ranked for its asynq server config.
func (l *AsynqLane) Queues() map[string]int {
	return map[string]int{
		l.name + ":high":    6,
		l.name + ":default": 3,
		l.name + ":low":     1,
	}
}

// ServerConfig builds the lane's worker pool configuration. StrictPriority
// guarantees a ready higher-priority item always dequeues before any ready
// lower one; the Queues values act as ranks, not weights.
func (l *AsynqLane) ServerConfig(concurrency int, retryBase time.Duration) asynq.Config {
	return asynq.Config{
		Concurrency:    concurrency,
		Queues:         l.Queues(),
		StrictPriority: true,
		RetryDelayFunc: RetryDelay(retryBase),
	}
}

func (l *AsynqLane) queueFor(priority int) string {
	switch {
	case priority > 0:
		return l.name + ":high"
	case priority < 0:
		return l.name + ":low"
	default:
		return l.name + ":default"
	}
}

// taskOptions translates lane policy into asynq enqueue options. asynq's
// MaxRetry counts retries after the first delivery, so the configured
// attempt bound maps to maxAttempts-1.
func (l *AsynqLane) taskOptions(opts Options) []asynq.Option {
	retries := l.maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	taskOpts := []asynq.Option{
		asynq.Queue(l.queueFor(opts.Priority)),
		asynq.MaxRetry(retries),
		asynq.Retention(completedRetention),
	}
	if opts.Delay > 0 {
		taskOpts = append(taskOpts, asynq.ProcessIn(opts.Delay))
	}
	return taskOpts
}

func (l *AsynqLane) Enqueue(ctx context.Context, ref Ref, opts Options) (Token, error) {
	payload, err := json.Marshal(ref)
	if err != nil {
		return Token{}, err
	}
	info, err := l.client.EnqueueContext(ctx, asynq.NewTask(l.TaskType(), payload), l.taskOptions(opts)...)
	if err != nil {
		l.log.LogInfra("enqueue failed", err)
		return Token{}, err
	}
	return Token{Queue: info.Queue, TaskID: info.ID}, nil
}

// Remove deletes a still-waiting item. Returns false without error when
// the item is gone or already leased by a worker; the caller treats that
// as best-effort.
func (l *AsynqLane) Remove(ctx context.Context, token Token) (bool, error) {
	if token.TaskID == "" {
		return false, nil
	}
	err := l.inspector.DeleteTask(token.Queue, token.TaskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *AsynqLane) Counts(ctx context.Context) (Counts, error) {
	infos := make([]*asynq.QueueInfo, 0, 3)
	for q := range l.Queues() {
		qi, err := l.inspector.GetQueueInfo(q)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return Counts{}, err
		}
		infos = append(infos, qi)
	}
	return mergeCounts(infos...), nil
}

func mergeCounts(infos ...*asynq.QueueInfo) Counts {
	var c Counts
	for _, qi := range infos {
		if qi == nil {
			continue
		}
		c.Waiting += qi.Pending
		c.Active += qi.Active
		c.Completed += qi.Completed
		c.Failed += qi.Retry + qi.Archived
		c.Delayed += qi.Scheduled
	}
	return c
}

func (l *AsynqLane) Close() error { return l.client.Close() }

// RetryDelay is the delivery backoff shared by both lane servers:
// exponential from base, doubling per attempt, capped at ten minutes.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		d := base
		for i := 0; i < n; i++ {
			d *= 2
			if d >= 10*time.Minute {
				return 10 * time.Minute
			}
		}
		return d
	}
}
