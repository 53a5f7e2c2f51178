// Package sched drives scan cycles at a fixed interval.
package sched

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CycleFunc runs one full scan cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler runs cycles strictly sequentially. The interval is
// measured from the end of one cycle to the start of the next, not
// wall-clock aligned. A failed or panicking cycle is logged and the
// loop keeps going; a dead monitor is expensive to notice, a missed
// cycle is cheap.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	logger   *zap.Logger
}

// New builds a Scheduler.
func New(interval time.Duration, cycle CycleFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{interval: interval, cycle: cycle, logger: logger}
}

// Run executes the first cycle immediately, then loops until the
// context is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked", zap.Any("panic", r))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	if err := s.cycle(ctx); err != nil {
		s.logger.Error("cycle failed", zap.Error(err))
	}
}
