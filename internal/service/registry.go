package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoopRegistry tracks the background advancement goroutine of each room so it
// can be cancelled exactly once, on completion or on shutdown.
type LoopRegistry struct {
	logger *zap.Logger

	mu    sync.Mutex
	loops map[uuid.UUID]context.CancelFunc
	wg    sync.WaitGroup
}

// NewLoopRegistry creates an empty registry.
func NewLoopRegistry(logger *zap.Logger) *LoopRegistry {
	return &LoopRegistry{
		logger: logger.Named("LoopRegistry"),
		loops:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches run in a goroutine bound to a per-room context. A second
// Start for the same room is a no-op; the first loop keeps running.
func (r *LoopRegistry) Start(parent context.Context, roomID uuid.UUID, run func(ctx context.Context)) bool {
	r.mu.Lock()
	if _, exists := r.loops[roomID]; exists {
		r.mu.Unlock()
		r.logger.Debug("Loop already running", zap.String("room_id", roomID.String()))
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	r.loops[roomID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer func() {
			r.Stop(roomID)
			r.wg.Done()
		}()
		run(ctx)
	}()
	return true
}

// Stop cancels the room's loop if one is running.
func (r *LoopRegistry) Stop(roomID uuid.UUID) {
	r.mu.Lock()
	cancel, ok := r.loops[roomID]
	if ok {
		delete(r.loops, roomID)
	}
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Running reports whether the room has an advancement loop.
func (r *LoopRegistry) Running(roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[roomID]
	return ok
}

// StopAll cancels every loop and waits for the goroutines to exit.
func (r *LoopRegistry) StopAll() {
	r.mu.Lock()
	for roomID, cancel := range r.loops {
		delete(r.loops, roomID)
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info("All advancement loops stopped")
}
