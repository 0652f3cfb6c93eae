package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-moderator/internal/messaging"
	"story-moderator/internal/models"
)

// advancePassiveChunk reveals the next passive-mode chunk. Returns true when
// the loop should stop: the story reached its final sentence, the room left
// the running state, or the room no longer exists. A transient load failure
// returns false so the loop retries on the next tick.
func (s *SessionService) advancePassiveChunk(ctx context.Context, roomID uuid.UUID) bool {
	log := s.logger.With(zap.String("room_id", roomID.String()))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			log.Warn("Room vanished, stopping passive loop")
			return true
		}
		log.Error("Failed to load room for passive chunk, retrying next tick", zap.Error(err))
		return false
	}
	if room.StoryFinished || room.Status != models.StatusActive || room.Mode != models.ModePassive {
		return true
	}

	story := s.stories.Get(room.StoryID)
	chunk, end, isLast := story.Chunk(room.StoryProgress, s.cfg.PassiveStoryStep)
	log.Info("Passive story chunk",
		zap.Int("from", room.StoryProgress), zap.Int("to", end), zap.Int("total", story.Total()))

	text := s.narrator.PassiveChunk(chunk, isLast)
	metadata, _ := json.Marshal(models.StoryMetadata{StoryProgress: end, IsLast: isLast})
	if err := s.postModeratorMessage(ctx, roomID, text, models.MessageTypeStory, metadata); err != nil {
		log.Error("Failed to post passive chunk", zap.Error(err))
		return false
	}

	if err := s.rooms.AdvanceProgress(ctx, roomID, end, isLast); err != nil {
		log.Error("Failed to advance story progress", zap.Error(err))
	}

	if isLast {
		s.finishStory(ctx, roomID, s.narrator.RandomEnding())
	}
	return isLast
}

// advanceActiveChunk reveals the next active-mode chunk through the
// moderator's voice. Same return contract as advancePassiveChunk.
func (s *SessionService) advanceActiveChunk(ctx context.Context, roomID uuid.UUID) bool {
	log := s.logger.With(zap.String("room_id", roomID.String()))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			log.Warn("Room vanished, stopping advancement")
			return true
		}
		log.Error("Failed to load room for active chunk, retrying next tick", zap.Error(err))
		return false
	}
	if room.StoryFinished || room.Status != models.StatusActive || room.Mode != models.ModeActive {
		return true
	}

	story := s.stories.Get(room.StoryID)
	chunk, end, isLast := story.Chunk(room.StoryProgress, s.cfg.ActiveStoryStep)
	log.Info("Active story chunk",
		zap.Int("from", room.StoryProgress), zap.Int("to", end), zap.Int("total", story.Total()))

	names := s.studentNames(ctx, roomID, log)
	history, err := s.messages.GetHistory(ctx, roomID, s.cfg.ChatHistoryLimit)
	if err != nil {
		log.Warn("Failed to load history for narration", zap.Error(err))
	}

	reply := s.narrator.ModeratorReply(ctx, names, history, story.ContextUpTo(end), chunk)
	metadata, _ := json.Marshal(models.StoryMetadata{StoryProgress: end, IsLast: isLast})
	if err := s.postModeratorMessage(ctx, roomID, reply, models.MessageTypeModerator, metadata); err != nil {
		log.Error("Failed to post active chunk", zap.Error(err))
		return false
	}

	if err := s.rooms.AdvanceProgress(ctx, roomID, end, isLast); err != nil {
		log.Error("Failed to advance story progress", zap.Error(err))
	}

	if isLast {
		s.finishStory(ctx, roomID, s.cfg.ActiveEndingMessage)
	}
	return isLast
}

// sendEngagement posts a non-advancing moderator question.
func (s *SessionService) sendEngagement(ctx context.Context, roomID uuid.UUID) {
	log := s.logger.With(zap.String("room_id", roomID.String()))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		log.Error("Failed to load room for engagement, skipping", zap.Error(err))
		return
	}
	if room.StoryFinished || room.Status != models.StatusActive {
		return
	}

	story := s.stories.Get(room.StoryID)
	names := s.studentNames(ctx, roomID, log)
	history, err := s.messages.GetHistory(ctx, roomID, s.cfg.ChatHistoryLimit)
	if err != nil {
		log.Warn("Failed to load history for engagement", zap.Error(err))
	}

	response := s.narrator.EngagementResponse(ctx, names, history, story.ContextUpTo(room.StoryProgress))
	metadata, _ := json.Marshal(models.EngagementMetadata{Type: "engagement", StoryProgress: room.StoryProgress})
	if err := s.postModeratorMessage(ctx, roomID, response, models.MessageTypeModerator, metadata); err != nil {
		log.Error("Failed to post engagement response", zap.Error(err))
	}
}

// studentNames lists the non-moderator display names in the room.
func (s *SessionService) studentNames(ctx context.Context, roomID uuid.UUID, log *zap.Logger) []string {
	participants, err := s.participants.GetByRoom(ctx, roomID)
	if err != nil {
		log.Warn("Failed to load participants for narration", zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if !p.IsModerator {
			names = append(names, p.DisplayName)
		}
	}
	return names
}

// finishStory closes the room exactly once: the active -> completed
// transition is conditional, and only the winner posts the ending message,
// ends the session and stops the advancement loop.
func (s *SessionService) finishStory(ctx context.Context, roomID uuid.UUID, ending string) {
	log := s.logger.With(zap.String("room_id", roomID.String()))

	won, err := s.rooms.CompleteIfActive(ctx, roomID)
	if err != nil {
		log.Error("Failed to complete room", zap.Error(err))
		return
	}
	if !won {
		log.Debug("Room already completed")
		return
	}

	log.Info("Story finished")
	if err := s.postModeratorMessage(ctx, roomID, ending, models.MessageTypeSystem, nil); err != nil {
		log.Warn("Failed to post ending message", zap.Error(err))
	}

	messageCount, err := s.messages.CountByRoom(ctx, roomID)
	if err != nil {
		log.Warn("Failed to count session messages", zap.Error(err))
	}

	session, err := s.sessions.GetOpenByRoom(ctx, roomID)
	if err != nil {
		log.Warn("No open session to close", zap.Error(err))
	}

	metadata, _ := json.Marshal(map[string]string{"completion_type": "story_finished"})
	if err := s.sessions.End(ctx, roomID, messageCount, metadata); err != nil {
		log.Error("Failed to end session", zap.Error(err))
	}
	if err := s.sessionCache.Delete(ctx, roomID); err != nil {
		log.Debug("Failed to drop cached session id", zap.Error(err))
	}
	if session != nil {
		s.publishSessionEvent(ctx, messaging.EventSessionEnded, session, messageCount)
	}

	s.registry.Stop(roomID)
}
