package monitor

import (
	"context"
	"math/rand/v2"
	"time"
)

// Service runs periodic health checks over all instances.
type Service struct {
	monitor  *Monitor
	interval time.Duration
}

// NewService creates the periodic health check loop.
func NewService(monitor *Monitor, interval time.Duration) *Service {
	return &Service{monitor: monitor, interval: interval}
}

// Run blocks until ctx is cancelled, checking all instances every
// interval with up to 10% jitter.
func (s *Service) Run(ctx context.Context) error {
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
			if _, err := s.monitor.CheckAll(ctx); err != nil {
				s.monitor.logger.Error("periodic health check failed", "error", err)
			}
			timer.Reset(s.jittered())
		}
	}
}

func (s *Service) jittered() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(s.interval) / 10))
	return s.interval + jitter
}
