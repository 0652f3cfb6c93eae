package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runPassiveLoop reveals one chunk per interval until the story finishes or
// the context is cancelled. The first chunk goes out after one full interval,
// giving participants time to read the intro.
func (s *SessionService) runPassiveLoop(ctx context.Context, roomID uuid.UUID) {
	log := s.logger.With(zap.String("room_id", roomID.String()))
	log.Info("Passive loop started", zap.Duration("interval", s.cfg.StoryChunkInterval))

	ticker := time.NewTicker(s.cfg.StoryChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Passive loop stopped")
			return
		case <-ticker.C:
			if done := s.advancePassiveChunk(ctx, roomID); done {
				log.Info("Passive loop finished")
				return
			}
		}
	}
}
