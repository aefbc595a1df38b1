package ingest

import (
	"context"
	"time"

	"feedpipe/internal/model"

	"go.uber.org/zap"
)

// Runner is satisfied by *Pipeline.
type Runner interface {
	Run(ctx context.Context) (model.RunReport, error)
}

// Scheduler triggers a run on a fixed interval until its context ends.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks. A non-positive interval disables scheduling. Cancelling ctx
// stops future runs; a run already in flight finishes before Start returns.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			report, err := s.runner.Run(context.WithoutCancel(ctx))
			if err != nil {
				s.logger.Error("Scheduled run failed", zap.Error(err))
				continue
			}
			s.logger.Info("Scheduled run complete",
				zap.Int("feeds", len(report)),
				zap.Int("failed", report.Failures()),
			)
		}
	}
}
