// Package service implements the moderation state machine: room assignment,
// quorum-gated story starts, timed advancement and exactly-once completion.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-moderator/internal/config"
	"story-moderator/internal/interfaces"
	"story-moderator/internal/messaging"
	"story-moderator/internal/models"
	"story-moderator/internal/narrator"
)

// Emitter is the websocket fan-out contract the service drives. JoinRoom
// must happen before the first room-wide Emit a new participant should see.
type Emitter interface {
	Emit(event string, data interface{}, roomID string)
	EmitTo(event string, data interface{}, socketID string)
	JoinRoom(socketID, roomID string)
}

// StoryProvider resolves story ids to story content.
type StoryProvider interface {
	Get(storyID string) *models.Story
	List() []string
}

// SessionService orchestrates the room lifecycle from first join to the
// ending message.
type SessionService struct {
	rooms        interfaces.RoomRepository
	participants interfaces.ParticipantRepository
	messages     interfaces.MessageRepository
	sessions     interfaces.SessionRepository
	sessionCache interfaces.SessionCache
	stories      StoryProvider
	narrator     narrator.Narrator
	emitter      Emitter
	publisher    messaging.SessionEventPublisher
	registry     *LoopRegistry
	cfg          *config.Config
	logger       *zap.Logger

	// loopCtx parents every advancement loop so shutdown cancels them all.
	loopCtx context.Context
}

// NewSessionService wires the service.
func NewSessionService(
	loopCtx context.Context,
	rooms interfaces.RoomRepository,
	participants interfaces.ParticipantRepository,
	messages interfaces.MessageRepository,
	sessions interfaces.SessionRepository,
	sessionCache interfaces.SessionCache,
	stories StoryProvider,
	storyNarrator narrator.Narrator,
	emitter Emitter,
	publisher messaging.SessionEventPublisher,
	registry *LoopRegistry,
	cfg *config.Config,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		sessions:     sessions,
		sessionCache: sessionCache,
		stories:      stories,
		narrator:     storyNarrator,
		emitter:      emitter,
		publisher:    publisher,
		registry:     registry,
		cfg:          cfg,
		logger:       logger.Named("SessionService"),
		loopCtx:      loopCtx,
	}
}

// GetOrCreateRoom assigns the caller to the oldest joinable room of the mode,
// creating one seeded with a random story when none exists.
func (s *SessionService) GetOrCreateRoom(ctx context.Context, mode models.RoomMode) (*models.Room, error) {
	if !mode.IsValid() {
		return nil, models.ErrInvalidMode
	}
	story := s.stories.Get("")
	room, err := s.rooms.FindOrCreate(ctx, mode, story.StoryID, s.cfg.RoomCapacity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Room assigned",
		zap.String("room_id", room.ID.String()),
		zap.String("mode", string(mode)),
		zap.Int("participants", room.CurrentParticipants))
	return room, nil
}

// GetRoomInfo returns the room with its participant list.
func (s *SessionService) GetRoomInfo(ctx context.Context, roomID uuid.UUID) (*models.Room, []*models.Participant, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := s.participants.GetByRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return room, participants, nil
}

// ListStories exposes the story library ids.
func (s *SessionService) ListStories() []string {
	return s.stories.List()
}

// CreateRoom creates a fresh room for the socket, seats the creator and posts
// the welcome message, then attempts a quorum start.
func (s *SessionService) CreateRoom(ctx context.Context, socketID, userName string, mode models.RoomMode) (*models.Room, error) {
	if !mode.IsValid() {
		return nil, models.ErrInvalidMode
	}
	story := s.stories.Get("")
	room, err := s.rooms.Create(ctx, mode, story.StoryID)
	if err != nil {
		return nil, err
	}

	if userName == "" {
		userName = "Student"
	}
	if _, err := s.seatParticipant(ctx, room.ID, userName, socketID); err != nil {
		return nil, err
	}
	s.emitter.JoinRoom(socketID, room.ID.String())

	if err := s.postModeratorMessage(ctx, room.ID, s.cfg.WelcomeMessage, models.MessageTypeSystem, nil); err != nil {
		s.logger.Warn("Failed to post welcome message", zap.String("room_id", room.ID.String()), zap.Error(err))
	}

	s.TryStartStory(ctx, room.ID)
	return room, nil
}

// JoinRoom seats a participant in an existing room and returns the
// participant together with the history the socket should be replayed.
func (s *SessionService) JoinRoom(ctx context.Context, socketID, userName string, roomID uuid.UUID) (*models.Participant, []*models.Message, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, nil, err
	}

	if userName == "" {
		name, err := s.participants.NextDisplayName(ctx, roomID)
		if err != nil {
			return nil, nil, err
		}
		userName = name
		s.logger.Info("Auto-generated participant name",
			zap.String("room_id", roomID.String()), zap.String("name", userName))
	}

	participant, err := s.seatParticipant(ctx, roomID, userName, socketID)
	if err != nil {
		return nil, nil, err
	}
	s.emitter.JoinRoom(socketID, roomID.String())

	history, err := s.messages.GetHistory(ctx, roomID, 0)
	if err != nil {
		return nil, nil, err
	}

	s.TryStartStory(ctx, roomID)
	return participant, history, nil
}

func (s *SessionService) seatParticipant(ctx context.Context, roomID uuid.UUID, userName, socketID string) (*models.Participant, error) {
	participant, err := s.participants.Add(ctx, roomID, userName, socketID, false)
	if err != nil {
		return nil, err
	}
	if err := s.rooms.IncrementParticipants(ctx, roomID); err != nil {
		s.logger.Warn("Failed to bump participant counter",
			zap.String("room_id", roomID.String()), zap.Error(err))
	}
	return participant, nil
}

// TryStartStory starts the story once the quorum is met. The waiting ->
// active transition is a conditional update, so concurrent joiners race
// safely: exactly one caller creates the session, posts the intro and starts
// the advancement loop.
func (s *SessionService) TryStartStory(ctx context.Context, roomID uuid.UUID) {
	log := s.logger.With(zap.String("room_id", roomID.String()))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		log.Error("Failed to load room for start", zap.Error(err))
		return
	}
	if room.Status != models.StatusWaiting {
		log.Debug("Room already started", zap.String("status", string(room.Status)))
		return
	}

	participants, err := s.participants.GetByRoom(ctx, roomID)
	if err != nil {
		log.Error("Failed to load participants for start", zap.Error(err))
		return
	}
	students := 0
	for _, p := range participants {
		if !p.IsModerator {
			students++
		}
	}
	if students < s.cfg.MinParticipantsToStart {
		log.Info("Waiting for quorum",
			zap.Int("students", students), zap.Int("required", s.cfg.MinParticipantsToStart))
		return
	}

	won, err := s.rooms.ActivateIfWaiting(ctx, roomID)
	if err != nil {
		log.Error("Failed to activate room", zap.Error(err))
		return
	}
	if !won {
		log.Debug("Another caller started the story")
		return
	}

	log.Info("Starting story", zap.Int("students", students), zap.String("mode", string(room.Mode)))

	session, err := s.sessions.Create(ctx, roomID, room.Mode, students, room.StoryID)
	if err != nil {
		log.Error("Failed to create session", zap.Error(err))
	} else {
		if err := s.sessionCache.Set(ctx, roomID, session.ID); err != nil {
			log.Warn("Failed to cache session id", zap.Error(err))
		}
		s.publishSessionEvent(ctx, messaging.EventSessionStarted, session, 0)
	}

	story := s.stories.Get(room.StoryID)
	if err := s.postModeratorMessage(ctx, roomID, story.Intro(), models.MessageTypeStory, nil); err != nil {
		log.Warn("Failed to post story intro", zap.Error(err))
	}

	if room.Mode == models.ModePassive {
		s.registry.Start(s.loopCtx, roomID, func(loopCtx context.Context) {
			s.runPassiveLoop(loopCtx, roomID)
		})
	} else {
		s.registry.Start(s.loopCtx, roomID, func(loopCtx context.Context) {
			s.runSilenceMonitor(loopCtx, roomID)
		})
	}
}

// HandleMessage stores and fans out a participant chat line. Messages for
// unknown, finished or completed rooms are dropped without an error event.
func (s *SessionService) HandleMessage(ctx context.Context, socketID string, roomID uuid.UUID, sender, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	log := s.logger.With(zap.String("room_id", roomID.String()))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		log.Warn("Dropping message for unknown room", zap.Error(err))
		return
	}
	if room.StoryFinished || room.Status == models.StatusCompleted {
		log.Debug("Dropping message for finished room")
		return
	}

	msg := &models.Message{
		RoomID:      roomID,
		SenderName:  sender,
		MessageText: text,
		MessageType: models.MessageTypeChat,
	}
	participant, err := s.participants.GetBySocketID(ctx, socketID)
	if err == nil {
		msg.ParticipantID = &participant.ID
		if err := s.participants.TouchActivity(ctx, participant.ID); err != nil {
			log.Debug("Failed to touch participant activity", zap.Error(err))
		}
	} else if !errors.Is(err, models.ErrParticipantNotFound) {
		log.Warn("Failed to resolve participant", zap.Error(err))
	}

	if _, err := s.messages.Add(ctx, msg); err != nil {
		log.Error("Failed to store chat message", zap.Error(err))
		return
	}

	s.emitter.Emit(EventReceiveMessage, MessagePayload{Sender: sender, Message: text}, roomID.String())
}

// HistoryPayload converts stored messages into the chat_history contract.
func HistoryPayload(history []*models.Message) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, HistoryEntry{
			Sender:    m.SenderName,
			Message:   m.MessageText,
			Timestamp: m.CreatedAt,
		})
	}
	return entries
}

// postModeratorMessage stores a moderator-authored message and fans it out.
func (s *SessionService) postModeratorMessage(ctx context.Context, roomID uuid.UUID, text string, msgType models.MessageType, metadata json.RawMessage) error {
	msg := &models.Message{
		RoomID:      roomID,
		SenderName:  models.ModeratorName,
		MessageText: text,
		MessageType: msgType,
		Metadata:    metadata,
	}
	if _, err := s.messages.Add(ctx, msg); err != nil {
		return err
	}
	s.emitter.Emit(EventReceiveMessage, MessagePayload{Sender: models.ModeratorName, Message: text}, roomID.String())
	return nil
}

func (s *SessionService) publishSessionEvent(ctx context.Context, name string, session *models.Session, messageCount int) {
	if session == nil {
		return
	}
	event := messaging.SessionEvent{
		Event:            name,
		SessionID:        session.ID.String(),
		RoomID:           session.RoomID.String(),
		Mode:             string(session.Mode),
		StoryID:          session.StoryID,
		ParticipantCount: session.ParticipantCount,
		MessageCount:     messageCount,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session event",
			zap.String("event", name), zap.String("room_id", session.RoomID.String()), zap.Error(err))
	}
}

// Shutdown stops every advancement loop.
func (s *SessionService) Shutdown() {
	s.registry.StopAll()
}
