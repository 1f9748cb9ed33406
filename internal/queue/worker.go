package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-filebot-backend/internal/observability"
)

// Handler processes one job. Returned errors are logged and counted; the
// job is not retried by the pool.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Pool runs Workers goroutines that dequeue and dispatch jobs.
type Pool struct {
	Queue   Queue
	Handler Handler
	Workers int
	// Backoff is the pause after a transport error from Dequeue.
	Backoff time.Duration
}

// NewPool builds a pool with sane defaults for non-positive values.
func NewPool(q Queue, h Handler, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{Queue: q, Handler: h, Workers: workers, Backoff: time.Second}
}

// Run blocks until ctx is cancelled and all workers have returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	log.Info().Int("workers", p.Workers).Msg("worker pool started")
	wg.Wait()
	log.Info().Msg("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	logger := log.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.Queue.Dequeue(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrEmpty):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		default:
			logger.Error().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.Backoff):
			}
			continue
		}
		p.dispatch(logger.WithContext(ctx), job)
	}
}

func (p *Pool) dispatch(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.WorkerJobs.WithLabelValues(string(job.Kind), "error").Inc()
			log.Ctx(ctx).Error().Interface("panic", rec).Str("job", job.String()).Msg("job panicked")
		}
	}()
	if err := p.Handler.Handle(ctx, job); err != nil {
		observability.WorkerJobs.WithLabelValues(string(job.Kind), "error").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("job", job.String()).Msg("job failed")
		return
	}
	observability.WorkerJobs.WithLabelValues(string(job.Kind), "ok").Inc()
}
