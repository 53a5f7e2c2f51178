package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsFirstCycleImmediately(t *testing.T) {
	t.Parallel()

	var cycles atomic.Int32
	s := New(time.Hour, func(context.Context) error {
		cycles.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return cycles.Load() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSchedulerMeasuresIntervalFromCycleEnd(t *testing.T) {
	t.Parallel()

	var starts []time.Time
	started := make(chan struct{}, 8)
	s := New(60*time.Millisecond, func(context.Context) error {
		starts = append(starts, time.Now())
		started <- struct{}{}
		time.Sleep(40 * time.Millisecond) // cycle work
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	<-started
	<-started
	cancel()
	<-done

	require.GreaterOrEqual(t, len(starts), 2)
	gap := starts[1].Sub(starts[0])
	// 40ms of work plus the full 60ms interval, never wall-aligned.
	assert.GreaterOrEqual(t, gap, 95*time.Millisecond)
}

func TestSchedulerToleratesFailedCycle(t *testing.T) {
	t.Parallel()

	var cycles atomic.Int32
	s := New(10*time.Millisecond, func(context.Context) error {
		if cycles.Add(1) == 1 {
			return errors.New("upstream down")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return cycles.Load() >= 3 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSchedulerRecoversFromPanickingCycle(t *testing.T) {
	t.Parallel()

	var cycles atomic.Int32
	s := New(10*time.Millisecond, func(context.Context) error {
		if cycles.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return cycles.Load() >= 2 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	var cycles atomic.Int32
	s := New(5*time.Millisecond, func(context.Context) error {
		cycles.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return cycles.Load() >= 1 },
		time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
