package queue

import (
	"context"
	"time"
)

// Ref is the lightweight payload a lane queue carries: the job record
// itself stays in the store.
type Ref struct {
	JobID string `json:"job_id"`
}

type Options struct {
	// Priority in [-100, 100]; higher dequeues first within the lane.
	Priority int
	// Delay defers visibility of the item.
	Delay time.Duration
}

// Token identifies an enqueued item so control operations can remove it
// while it is still waiting.
type Token struct {
	Queue  string
	TaskID string
}

type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

func (c Counts) Total() int {
	return c.Waiting + c.Active + c.Completed + c.Failed + c.Delayed
}

// Lane is one durable, priority-ordered work queue. The worker side
// (dequeue, lease, stall redelivery) is driven by the lane's server; this
// interface covers the producer and control surface the engine needs.
type Lane interface {
	Enqueue(ctx context.Context, ref Ref, opts Options) (Token, error)
	Remove(ctx context.Context, token Token) (bool, error)
	Counts(ctx context.Context) (Counts, error)
}
