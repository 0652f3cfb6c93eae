package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"story-moderator/internal/messaging"
	"story-moderator/internal/models"
)

// emittedEvent records one fan-out call.
type emittedEvent struct {
	Event  string
	Target string // room id or socket id
	Data   interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
	joins  []string
}

func (e *recordingEmitter) Emit(event string, data interface{}, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emittedEvent{Event: event, Target: roomID, Data: data})
}

func (e *recordingEmitter) EmitTo(event string, data interface{}, socketID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emittedEvent{Event: event, Target: socketID, Data: data})
}

func (e *recordingEmitter) JoinRoom(socketID, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins = append(e.joins, socketID+"->"+roomID)
}

func (e *recordingEmitter) messagesOf(event string) []MessagePayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []MessagePayload
	for _, ev := range e.events {
		if ev.Event == event {
			if payload, ok := ev.Data.(MessagePayload); ok {
				out = append(out, payload)
			}
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.SessionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event messaging.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) named(event string) []messaging.SessionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []messaging.SessionEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// staticStories serves one fixed story for every id.
type staticStories struct {
	story *models.Story
}

func (s staticStories) Get(storyID string) *models.Story { return s.story }
func (s staticStories) List() []string                   { return []string{s.story.StoryID} }

// In-memory repositories with the same conditional-update semantics as the
// SQL implementations. Used by the lifecycle tests to drive real loops.

type memStore struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*models.Room
	participants map[uuid.UUID][]*models.Participant
	messages     map[uuid.UUID][]*models.Message
	sessions     map[uuid.UUID]*models.Session
}

func newMemStore() *memStore {
	return &memStore{
		rooms:        make(map[uuid.UUID]*models.Room),
		participants: make(map[uuid.UUID][]*models.Participant),
		messages:     make(map[uuid.UUID][]*models.Message),
		sessions:     make(map[uuid.UUID]*models.Session),
	}
}

type memRoomRepo struct{ store *memStore }

func (r *memRoomRepo) Create(ctx context.Context, mode models.RoomMode, storyID string) (*models.Room, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room := &models.Room{
		ID:        uuid.New(),
		Mode:      mode,
		Status:    models.StatusWaiting,
		StoryID:   storyID,
		CreatedAt: time.Now(),
	}
	r.store.rooms[room.ID] = room
	return copyRoom(room), nil
}

func (r *memRoomRepo) GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (r *memRoomRepo) FindOrCreate(ctx context.Context, mode models.RoomMode, storyID string, capacity int) (*models.Room, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var oldest *models.Room
	for _, room := range r.store.rooms {
		if room.Mode != mode || room.StoryFinished || room.Status == models.StatusCompleted {
			continue
		}
		if room.CurrentParticipants >= capacity {
			continue
		}
		if oldest == nil || room.CreatedAt.Before(oldest.CreatedAt) {
			oldest = room
		}
	}
	if oldest != nil {
		return copyRoom(oldest), nil
	}
	room := &models.Room{
		ID:        uuid.New(),
		Mode:      mode,
		Status:    models.StatusWaiting,
		StoryID:   storyID,
		CreatedAt: time.Now(),
	}
	r.store.rooms[room.ID] = room
	return copyRoom(room), nil
}

func (r *memRoomRepo) ActivateIfWaiting(ctx context.Context, roomID uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[roomID]
	if !ok || room.Status != models.StatusWaiting {
		return false, nil
	}
	now := time.Now()
	room.Status = models.StatusActive
	room.StartedAt = &now
	return true, nil
}

func (r *memRoomRepo) AdvanceProgress(ctx context.Context, roomID uuid.UUID, progress int, finished bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[roomID]
	if !ok || room.StoryProgress >= progress {
		return nil
	}
	room.StoryProgress = progress
	room.StoryFinished = room.StoryFinished || finished
	return nil
}

func (r *memRoomRepo) CompleteIfActive(ctx context.Context, roomID uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[roomID]
	if !ok || room.Status != models.StatusActive {
		return false, nil
	}
	now := time.Now()
	room.Status = models.StatusCompleted
	room.CompletedAt = &now
	return true, nil
}

func (r *memRoomRepo) IncrementParticipants(ctx context.Context, roomID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if room, ok := r.store.rooms[roomID]; ok {
		room.CurrentParticipants++
	}
	return nil
}

func copyRoom(room *models.Room) *models.Room {
	c := *room
	return &c
}

type memParticipantRepo struct{ store *memStore }

func (r *memParticipantRepo) Add(ctx context.Context, roomID uuid.UUID, displayName, socketID string, isModerator bool) (*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := &models.Participant{
		ID:          uuid.New(),
		RoomID:      roomID,
		DisplayName: displayName,
		SocketID:    socketID,
		IsModerator: isModerator,
		JoinedAt:    time.Now(),
	}
	r.store.participants[roomID] = append(r.store.participants[roomID], p)
	return p, nil
}

func (r *memParticipantRepo) GetByRoom(ctx context.Context, roomID uuid.UUID) ([]*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]*models.Participant(nil), r.store.participants[roomID]...), nil
}

func (r *memParticipantRepo) GetBySocketID(ctx context.Context, socketID string) (*models.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, list := range r.store.participants {
		for _, p := range list {
			if p.SocketID == socketID {
				return p, nil
			}
		}
	}
	return nil, models.ErrParticipantNotFound
}

func (r *memParticipantRepo) NextDisplayName(ctx context.Context, roomID uuid.UUID) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, p := range r.store.participants[roomID] {
		if !p.IsModerator {
			count++
		}
	}
	return fmt.Sprintf("Student %d", count+1), nil
}

func (r *memParticipantRepo) TouchActivity(ctx context.Context, participantID uuid.UUID) error {
	return nil
}

type memMessageRepo struct{ store *memStore }

func (r *memMessageRepo) Add(ctx context.Context, msg *models.Message) (*models.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *msg
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.store.messages[msg.RoomID] = append(r.store.messages[msg.RoomID], &stored)
	return &stored, nil
}

func (r *memMessageRepo) GetHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	history := r.store.messages[roomID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]*models.Message(nil), history...), nil
}

func (r *memMessageRepo) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.messages[roomID]), nil
}

func (r *memMessageRepo) byType(roomID uuid.UUID, msgType models.MessageType) []*models.Message {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Message
	for _, m := range r.store.messages[roomID] {
		if m.MessageType == msgType {
			out = append(out, m)
		}
	}
	return out
}

type memSessionRepo struct{ store *memStore }

func (r *memSessionRepo) Create(ctx context.Context, roomID uuid.UUID, mode models.RoomMode, participantCount int, storyID string) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session := &models.Session{
		ID:               uuid.New(),
		RoomID:           roomID,
		Mode:             mode,
		ParticipantCount: participantCount,
		StoryID:          storyID,
		StartedAt:        time.Now(),
	}
	r.store.sessions[roomID] = session
	return session, nil
}

func (r *memSessionRepo) End(ctx context.Context, roomID uuid.UUID, messageCount int, metadata json.RawMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[roomID]
	if !ok || session.EndedAt != nil {
		return nil
	}
	now := time.Now()
	session.EndedAt = &now
	session.MessageCount = messageCount
	session.Metadata = metadata
	return nil
}

func (r *memSessionRepo) GetOpenByRoom(ctx context.Context, roomID uuid.UUID) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[roomID]
	if !ok || session.EndedAt != nil {
		return nil, models.ErrNotFound
	}
	return session, nil
}

type memSessionCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]uuid.UUID
}

func newMemSessionCache() *memSessionCache {
	return &memSessionCache{entries: make(map[uuid.UUID]uuid.UUID)}
}

func (c *memSessionCache) Set(ctx context.Context, roomID, sessionID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[roomID] = sessionID
	return nil
}

func (c *memSessionCache) Get(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.entries[roomID]; ok {
		return id, nil
	}
	return uuid.Nil, models.ErrNotFound
}

func (c *memSessionCache) Delete(ctx context.Context, roomID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, roomID)
	return nil
}
