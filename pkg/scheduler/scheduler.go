// Package scheduler drives an elevator car at a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-sweep-elevator/pkg/elevator"
)

// Ticker is anything advanced by the scheduler, normally *elevator.Car.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Scheduler invokes Tick on its target every interval. Ticks run on the
// scheduler goroutine, so a tick that outlasts the interval delays the next
// one instead of overlapping it.
type Scheduler struct {
	target   Ticker
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler for target.
func New(target Ticker, interval time.Duration) (*Scheduler, error) {
	if target == nil {
		return nil, errors.New("scheduler: nil target")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	return &Scheduler{
		target:   target,
		interval: interval,
		logger:   slog.Default().With("component", "scheduler"),
	}, nil
}

// Run ticks until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping (Context Cancelled)")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.target.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, elevator.ErrTickInProgress):
		s.logger.Debug("Tick skipped: previous tick still running")
	case ctx.Err() != nil:
		s.logger.Info("Tick interrupted by shutdown", "error", err)
	default:
		s.logger.Error("Tick failed", "error", err)
	}
}
