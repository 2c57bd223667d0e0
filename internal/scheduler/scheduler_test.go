package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RunsImmediatelyAndRepeats(t *testing.T) {
	var fast, slow atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(
			Task{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error { fast.Add(1); return nil }},
			Task{Name: "slow", Interval: time.Hour, Run: func(context.Context) error { slow.Add(1); return nil }},
		).Run(ctx)
	}()

	require.Eventually(t, func() bool { return fast.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), slow.Load())
}

func TestRun_FailuresAreRetried(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(Task{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		if calls.Add(1) == 2 {
			panic("boom")
		}
		return errors.New("database is locked")
	}}).Run(ctx)

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_RejectsZeroInterval(t *testing.T) {
	err := New(Task{Name: "bad", Run: func(context.Context) error { return nil }}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	var order []string
	err := RunOnce(context.Background(),
		Task{Name: "probe", Run: func(context.Context) error { order = append(order, "probe"); return nil }},
		Task{Name: "sync", Run: func(context.Context) error { order = append(order, "sync"); return errors.New("down") }},
		Task{Name: "never", Run: func(context.Context) error { order = append(order, "never"); return nil }},
	)
	assert.EqualError(t, err, "down")
	assert.Equal(t, []string{"probe", "sync"}, order)
}
