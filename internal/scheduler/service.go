// Package scheduler runs the batch sweep on a cron schedule for unattended
// operation, typically nightly after new footage lands.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"match-highlights/internal/logging"
)

type Service struct {
	log  *logging.Logger
	cron *cron.Cron

	mu      sync.Mutex
	running bool
	sweep   func(ctx context.Context) error
}

// New schedules sweep under the given cron spec (standard five-field form).
// Overlapping runs are dropped, not queued; a sweep that outlives its
// interval just means the next tick is a no-op.
func New(spec string, log *logging.Logger, sweep func(ctx context.Context) error) (*Service, error) {
	c := cron.New()
	s := &Service{log: log, cron: c, sweep: sweep}

	_, err := c.AddFunc(spec, func() {
		s.mu.Lock()
		if s.running {
			s.mu.Unlock()
			s.log.Warnf("cron: previous sweep still running, skipping this tick")
			return
		}
		s.running = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		s.log.Infof("cron: sweep starting")
		if err := s.sweep(context.Background()); err != nil {
			s.log.Errorf("cron: sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run blocks until the context is cancelled, then waits for an in-flight
// sweep to drain.
func (s *Service) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Infof("cron: scheduler started")

	<-ctx.Done()

	ctxStop := s.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}
