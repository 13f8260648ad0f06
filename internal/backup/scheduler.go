package backup

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/aischolar/scholar/internal/instance"
)

// Scheduler runs periodic full backups of every instance plus a
// retention sweep after each round.
type Scheduler struct {
	service  *Service
	manager  *instance.Manager
	interval time.Duration
}

// NewScheduler creates a backup scheduler. interval must be positive.
func NewScheduler(service *Service, manager *instance.Manager, interval time.Duration) *Scheduler {
	return &Scheduler{service: service, manager: manager, interval: interval}
}

// Run blocks until ctx is cancelled, backing up all instances every
// interval. Each tick is jittered by up to 10% so multiple replicas
// sharing a backup directory do not sweep in lockstep.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	timer := time.NewTimer(s.jittered())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.jittered())
		}
	}
}

// runOnce backs up every instance, then sweeps retention. Failures are
// logged and do not stop the round.
func (s *Scheduler) runOnce(ctx context.Context) {
	instances, err := s.manager.List(ctx)
	if err != nil {
		s.service.logger.Error("scheduled backup: listing instances failed", "error", err)
		return
	}

	for _, inst := range instances {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.service.Create(ctx, inst.Name, TypeFull); err != nil {
			s.service.logger.Error("scheduled backup failed",
				"instance", inst.Name, "error", err)
		}
	}

	if _, err := s.service.ApplyRetention(ctx); err != nil {
		s.service.logger.Error("scheduled retention sweep failed", "error", err)
	}
}

func (s *Scheduler) jittered() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(s.interval) / 10))
	return s.interval + jitter
}
