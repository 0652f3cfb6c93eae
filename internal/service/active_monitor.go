package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-moderator/internal/models"
)

// runSilenceMonitor drives active-mode pacing. It polls the room and, once
// per intervention window, asks the narrator whether to advance the story or
// to engage the students instead. A story that has not advanced for the
// fallback window advances unconditionally.
func (s *SessionService) runSilenceMonitor(ctx context.Context, roomID uuid.UUID) {
	log := s.logger.With(zap.String("room_id", roomID.String()))
	log.Info("Silence monitor started",
		zap.Duration("poll", s.cfg.MonitorPollInterval),
		zap.Duration("window", s.cfg.ActiveInterventionWindow))

	ticker := time.NewTicker(s.cfg.MonitorPollInterval)
	defer ticker.Stop()

	lastIntervention := time.Now()
	lastAdvance := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Info("Silence monitor stopped")
			return
		case <-ticker.C:
		}

		room, err := s.rooms.GetByID(ctx, roomID)
		if err != nil {
			if errors.Is(err, models.ErrRoomNotFound) {
				log.Warn("Room vanished, stopping monitor")
				return
			}
			log.Error("Failed to load room, retrying next tick", zap.Error(err))
			continue
		}
		if room.StoryFinished || room.Status == models.StatusCompleted {
			log.Info("Silence monitor finished")
			return
		}

		now := time.Now()
		if now.Sub(lastIntervention) < s.cfg.ActiveInterventionWindow {
			continue
		}

		sinceAdvance := now.Sub(lastAdvance)
		log.Info("Silence detected",
			zap.Duration("since_intervention", now.Sub(lastIntervention)),
			zap.Duration("since_advance", sinceAdvance))

		history, err := s.messages.GetHistory(ctx, roomID, s.cfg.ChatHistoryLimit)
		if err != nil {
			log.Warn("Failed to load history for decision", zap.Error(err))
		}
		story := s.stories.Get(room.StoryID)
		revealed := story.ContextUpTo(room.StoryProgress)

		if s.narrator.ShouldAdvance(ctx, history, revealed, sinceAdvance) {
			log.Info("Decision: advance story")
			if done := s.advanceActiveChunk(ctx, roomID); done {
				log.Info("Silence monitor finished")
				return
			}
			lastAdvance = now
		} else {
			log.Info("Decision: engage students")
			s.sendEngagement(ctx, roomID)
		}
		lastIntervention = now
	}
}
