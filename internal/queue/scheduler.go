package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler calls Tick every Interval until ctx is done. Errors are logged.
type Scheduler struct {
	Name     string
	Interval time.Duration
	Tick     func(ctx context.Context) error
}

// Run blocks until ctx is cancelled. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("scheduler", s.Name).Msg("scheduled tick failed")
	}
}
