// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"story-moderator/internal/models"
)

// MockRoomRepository is a mock of interfaces.RoomRepository.
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Create(ctx context.Context, mode models.RoomMode, storyID string) (*models.Room, error) {
	args := m.Called(ctx, mode, storyID)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) FindOrCreate(ctx context.Context, mode models.RoomMode, storyID string, capacity int) (*models.Room, error) {
	args := m.Called(ctx, mode, storyID, capacity)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) ActivateIfWaiting(ctx context.Context, roomID uuid.UUID) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) AdvanceProgress(ctx context.Context, roomID uuid.UUID, progress int, finished bool) error {
	args := m.Called(ctx, roomID, progress, finished)
	return args.Error(0)
}

func (m *MockRoomRepository) CompleteIfActive(ctx context.Context, roomID uuid.UUID) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) IncrementParticipants(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// MockParticipantRepository is a mock of interfaces.ParticipantRepository.
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Add(ctx context.Context, roomID uuid.UUID, displayName, socketID string, isModerator bool) (*models.Participant, error) {
	args := m.Called(ctx, roomID, displayName, socketID, isModerator)
	p, _ := args.Get(0).(*models.Participant)
	return p, args.Error(1)
}

func (m *MockParticipantRepository) GetByRoom(ctx context.Context, roomID uuid.UUID) ([]*models.Participant, error) {
	args := m.Called(ctx, roomID)
	list, _ := args.Get(0).([]*models.Participant)
	return list, args.Error(1)
}

func (m *MockParticipantRepository) GetBySocketID(ctx context.Context, socketID string) (*models.Participant, error) {
	args := m.Called(ctx, socketID)
	p, _ := args.Get(0).(*models.Participant)
	return p, args.Error(1)
}

func (m *MockParticipantRepository) NextDisplayName(ctx context.Context, roomID uuid.UUID) (string, error) {
	args := m.Called(ctx, roomID)
	return args.String(0), args.Error(1)
}

func (m *MockParticipantRepository) TouchActivity(ctx context.Context, participantID uuid.UUID) error {
	args := m.Called(ctx, participantID)
	return args.Error(0)
}

// MockMessageRepository is a mock of interfaces.MessageRepository.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Add(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	stored, _ := args.Get(0).(*models.Message)
	return stored, args.Error(1)
}

func (m *MockMessageRepository) GetHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	list, _ := args.Get(0).([]*models.Message)
	return list, args.Error(1)
}

func (m *MockMessageRepository) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

// MockSessionRepository is a mock of interfaces.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, roomID uuid.UUID, mode models.RoomMode, participantCount int, storyID string) (*models.Session, error) {
	args := m.Called(ctx, roomID, mode, participantCount, storyID)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *MockSessionRepository) End(ctx context.Context, roomID uuid.UUID, messageCount int, metadata json.RawMessage) error {
	args := m.Called(ctx, roomID, messageCount, metadata)
	return args.Error(0)
}

func (m *MockSessionRepository) GetOpenByRoom(ctx context.Context, roomID uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, roomID)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

// MockSessionCache is a mock of interfaces.SessionCache.
type MockSessionCache struct {
	mock.Mock
}

func (m *MockSessionCache) Set(ctx context.Context, roomID, sessionID uuid.UUID) error {
	args := m.Called(ctx, roomID, sessionID)
	return args.Error(0)
}

func (m *MockSessionCache) Get(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, roomID)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}

func (m *MockSessionCache) Delete(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}
