package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoopRegistryStartIsExclusive(t *testing.T) {
	r := NewLoopRegistry(zap.NewNop())
	roomID := uuid.New()

	var starts int32
	run := func(ctx context.Context) {
		atomic.AddInt32(&starts, 1)
		<-ctx.Done()
	}

	assert.True(t, r.Start(context.Background(), roomID, run))
	assert.False(t, r.Start(context.Background(), roomID, run))
	assert.True(t, r.Running(roomID))

	r.StopAll()
	assert.False(t, r.Running(roomID))
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))
}

func TestLoopRegistryStopCancelsLoop(t *testing.T) {
	r := NewLoopRegistry(zap.NewNop())
	roomID := uuid.New()

	done := make(chan struct{})
	r.Start(context.Background(), roomID, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	r.Stop(roomID)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop was not cancelled")
	}
	assert.False(t, r.Running(roomID))

	// A finished room can host a fresh loop again.
	assert.True(t, r.Start(context.Background(), roomID, func(ctx context.Context) { <-ctx.Done() }))
	r.StopAll()
}

func TestLoopRegistryLoopExitUnregisters(t *testing.T) {
	r := NewLoopRegistry(zap.NewNop())
	roomID := uuid.New()

	r.Start(context.Background(), roomID, func(ctx context.Context) {})

	assert.Eventually(t, func() bool { return !r.Running(roomID) },
		time.Second, 5*time.Millisecond)
}
