// Package queue carries background work between the HTTP/bot front-end and
// the worker pool: broadcast fan-out runs and single deliveries. Jobs travel
// as small JSON envelopes on a Redis list so any process sharing the Redis
// instance can produce or consume them.
package queue

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a job type.
type Kind string

const (
	// KindStartBroadcast runs fan-out for a broadcast id.
	KindStartBroadcast Kind = "start_broadcast"
	// KindDeliver delivers one broadcast recipient id.
	KindDeliver Kind = "deliver"
)

// Job is the unit of background work.
type Job struct {
	Kind Kind `json:"kind"`
	ID   uint `json:"id"`
}

func (j Job) String() string { return fmt.Sprintf("%s:%d", j.Kind, j.ID) }

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue: empty")

// Enqueuer schedules jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Queue is a FIFO of jobs.
type Queue interface {
	Enqueuer
	// Dequeue blocks until a job is available, the timeout elapses (ErrEmpty)
	// or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}
