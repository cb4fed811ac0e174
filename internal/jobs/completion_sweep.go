package jobs

import (
	"context"
	"time"

	"tourbook/pkg/logger"
)

// Sweeper completes confirmed, paid tours whose end date has passed.
type Sweeper interface {
	SweepExpiredConfirmed(ctx context.Context) (int64, error)
}

// CompletionSweeper runs the sweep once at start and then on every tick.
// A failed run is logged and retried on the next tick.
type CompletionSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
}

func NewCompletionSweeper(sweeper Sweeper, interval, timeout time.Duration, log *logger.Logger) *CompletionSweeper {
	return &CompletionSweeper{
		sweeper:  sweeper,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

func (s *CompletionSweeper) Name() string { return "completion-sweeper" }

func (s *CompletionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Completion sweeper started",
		"interval", s.interval,
		"timeout", s.timeout,
	)

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("Completion sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single bounded sweep and reports how many tours it
// completed.
func (s *CompletionSweeper) RunOnce(ctx context.Context) int64 {
	if ctx.Err() != nil {
		return 0
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.SweepExpiredConfirmed(runCtx)
	if err != nil {
		s.log.Error("Completion sweep failed",
			"duration", time.Since(start),
			"error", err,
		)
		return 0
	}

	s.log.Info("Completion sweep finished",
		"completed", n,
		"duration", time.Since(start),
	)
	return n
}
