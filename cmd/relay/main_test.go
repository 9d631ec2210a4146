package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-relay/internal/scheduler"
)

func TestShutdown_WaitsForInFlightTickBeforeRelease(t *testing.T) {
	runner := scheduler.New(context.Background(), nil)

	started := make(chan struct{})
	var tickDone, closedDuringTick atomic.Bool
	var storeClosed atomic.Bool

	_, err := runner.Add("submission", "@every 1s", func(context.Context) error {
		if tickDone.Load() {
			return nil
		}
		close(started)
		// Stands in for a long confirmation wait followed by the hash write-back.
		time.Sleep(3 * time.Second)
		if storeClosed.Load() {
			closedDuringTick.Store(true)
		}
		tickDone.Store(true)
		return nil
	})
	require.NoError(t, err)

	runner.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never started")
	}

	var order []string
	shutdown(runner, []func(){
		func() { storeClosed.Store(true); order = append(order, "store") },
		func() { order = append(order, "archive") },
	})

	assert.True(t, tickDone.Load(), "shutdown returned before the tick finished")
	assert.False(t, closedDuringTick.Load(), "store closed under a running tick")
	assert.Equal(t, []string{"archive", "store"}, order)
}

func TestReleaseAll_Empty(t *testing.T) {
	assert.NotPanics(t, func() { releaseAll(nil) })
}
