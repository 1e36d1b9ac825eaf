package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type heldLock struct{ err error }

func (l heldLock) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return nil, l.err
}

type countingLock struct{ acquired, released atomic.Int32 }

func (l *countingLock) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	l.acquired.Add(1)
	return func(context.Context) error {
		l.released.Add(1)
		return nil
	}, nil
}

func TestAddJob_InvalidSpec(t *testing.T) {
	s := New(nil, nil)

	err := s.AddJob("anchor", "not a spec", time.Second, func(context.Context) error { return nil })

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "schedule anchor")
}

func TestRun_ReleasesLock(t *testing.T) {
	lock := &countingLock{}
	s := New(lock, nil)
	var runs atomic.Int32

	s.RunNow("anchor", time.Second, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs.Add(1)
		return nil
	})

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), lock.acquired.Load())
	assert.Equal(t, int32(1), lock.released.Load())
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	for _, lock := range []Locker{heldLock{}, heldLock{err: errors.New("redis down")}} {
		s := New(lock, nil)
		called := false

		s.RunNow("monitor", time.Second, func(context.Context) error {
			called = true
			return nil
		})

		assert.False(t, called)
	}
}

func TestRun_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := New(nil, zap.New(core))

	s.RunNow("anchor", time.Second, func(context.Context) error { return errors.New("calendar down") })

	entries := logs.FilterMessage("job failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "anchor", entries[0].ContextMap()["job"])
}

func TestStop_CancelsRunningJobs(t *testing.T) {
	s := New(nil, nil)
	started := make(chan struct{})
	finished := make(chan struct{})
	var startOnce, finishOnce sync.Once
	require.NoError(t, s.AddJob("slow", "@every 1s", time.Minute, func(ctx context.Context) error {
		startOnce.Do(func() { close(started) })
		<-ctx.Done()
		finishOnce.Do(func() { close(finished) })
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the job finished")
	}
}
