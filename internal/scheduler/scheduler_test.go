package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_SkipsDisabledJobs(t *testing.T) {
	s := New(&sync.Mutex{}, zerolog.Nop())
	s.Add("off", 0, false, func(context.Context) error { return nil })
	s.Add("on", time.Minute, false, func(context.Context) error { return nil })

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "on", s.Status()[0].Name)
}

func TestStart_RunsImmediatelyAndOnTicks(t *testing.T) {
	s := New(&sync.Mutex{}, zerolog.Nop())
	var runs atomic.Int32
	s.Add("tick", 10*time.Millisecond, false, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load(), "no runs after Stop")

	status := s.Status()[0]
	assert.GreaterOrEqual(t, status.Runs, 3)
	assert.Zero(t, status.Failures)
	assert.False(t, status.LastRun.IsZero())
}

func TestExecute_RecordsFailures(t *testing.T) {
	s := New(&sync.Mutex{}, zerolog.Nop())
	s.Add("broken", time.Hour, false, func(context.Context) error { return errors.New("store unavailable") })

	s.Start(context.Background())
	require.Eventually(t, func() bool { return s.Status()[0].Runs == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	status := s.Status()[0]
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, "store unavailable", status.LastError)
}

func TestExecute_ExclusiveJobSkipsWhileLocked(t *testing.T) {
	lock := &sync.Mutex{}
	lock.Lock()

	s := New(lock, zerolog.Nop())
	var runs atomic.Int32
	s.Add("apply", 10*time.Millisecond, true, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Add("scan", time.Hour, false, func(context.Context) error { return nil })

	s.Start(context.Background())
	require.Eventually(t, func() bool { return s.Status()[0].Skipped >= 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, runs.Load())
	require.Eventually(t, func() bool { return s.Status()[1].Runs == 1 }, time.Second, 5*time.Millisecond)

	lock.Unlock()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// the job released the lock after running
	assert.True(t, lock.TryLock())
}

func TestStop_CancelsContext(t *testing.T) {
	s := New(&sync.Mutex{}, zerolog.Nop())
	started := make(chan struct{})
	s.Add("long", time.Hour, false, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	s.Start(context.Background())
	<-started
	s.Stop()

	assert.Equal(t, context.Canceled.Error(), s.Status()[0].LastError)
}

func TestStart_Twice(t *testing.T) {
	s := New(&sync.Mutex{}, zerolog.Nop())
	var runs atomic.Int32
	s.Add("once", time.Hour, false, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), runs.Load())
}
