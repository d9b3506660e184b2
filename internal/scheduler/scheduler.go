package scheduler

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/seat-locker-kiosk/internal/service"
)

type sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Scheduler runs the expiration sweep on a fixed interval. The kiosk's
// polling already sweeps; this keeps the floor current when nobody polls.
type Scheduler struct {
	expiration sweeper
	interval   time.Duration
	logger     service.Logger
}

func New(expiration sweeper, interval time.Duration, logger service.Logger) *Scheduler {
	if logger == nil {
		logger = service.DiscardLogger()
	}
	return &Scheduler{
		expiration: expiration,
		interval:   interval,
		logger:     logger,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infoj(log.JSON{"msg": "scheduler started", "interval": s.interval.String()})

	for {
		select {
		case <-ctx.Done():
			s.logger.Infoj(log.JSON{"msg": "scheduler stopped"})
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.expiration.Sweep(ctx)
	if err != nil {
		s.logger.Errorj(log.JSON{"msg": "expiration sweep failed", "error": err.Error()})
		return
	}
	if res.Failed > 0 {
		s.logger.Warnj(log.JSON{"msg": "expiration sweep incomplete", "failed": res.Failed, "applied": res.Applied})
	}
}
