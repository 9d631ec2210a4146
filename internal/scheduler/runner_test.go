package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	r := New(context.Background(), nil)

	var running, maxRunning, runs atomic.Int32
	_, err := r.Add("slow", "@every 1s", func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		runs.Add(1)
		time.Sleep(2500 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	r.Start()
	time.Sleep(4500 * time.Millisecond)
	r.Stop()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.Zero(t, running.Load(), "Stop must wait for the running job")
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := New(context.Background(), nil)

	var runs atomic.Int32
	_, err := r.Add("panicky", "@every 1s", func(context.Context) error {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	r.Start()
	time.Sleep(2500 * time.Millisecond)
	r.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(2), "job keeps running after a panic")
}

func TestRunner_PanicOnceDoesNotBlockLaterRuns(t *testing.T) {
	r := New(context.Background(), nil)

	var runs atomic.Int32
	_, err := r.Add("submission", "@every 1s", func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("first tick fails")
		}
		return nil
	})
	require.NoError(t, err)

	r.Start()
	time.Sleep(4500 * time.Millisecond)
	r.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestRunner_StopWaitsForInFlightJob(t *testing.T) {
	r := New(context.Background(), nil)

	started := make(chan struct{})
	var finished atomic.Bool
	_, err := r.Add("submission", "@every 1s", func(context.Context) error {
		if finished.Load() {
			return nil
		}
		close(started)
		time.Sleep(2 * time.Second)
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)

	r.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	r.Stop()
	assert.True(t, finished.Load(), "Stop returned before the running job finished")
}

func TestRunner_JobsReceiveBaseContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := New(base, nil)

	got := make(chan interface{}, 1)
	_, err := r.Add("once", "@every 1s", func(ctx context.Context) error {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
		return nil
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "base", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestRunner_InvalidSpec(t *testing.T) {
	r := New(context.Background(), nil)
	_, err := r.Add("bad", "every ten seconds", func(context.Context) error { return nil })
	assert.Error(t, err)
}
