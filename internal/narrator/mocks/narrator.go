// Package mocks provides a testify mock for the Narrator interface.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"story-moderator/internal/models"
)

// MockNarrator is a mock of narrator.Narrator.
type MockNarrator struct {
	mock.Mock
}

func (m *MockNarrator) ModeratorReply(ctx context.Context, participants []string, history []*models.Message, revealed, chunk string) string {
	args := m.Called(ctx, participants, history, revealed, chunk)
	return args.String(0)
}

func (m *MockNarrator) EngagementResponse(ctx context.Context, participants []string, history []*models.Message, revealed string) string {
	args := m.Called(ctx, participants, history, revealed)
	return args.String(0)
}

func (m *MockNarrator) ShouldAdvance(ctx context.Context, history []*models.Message, revealed string, sinceAdvance time.Duration) bool {
	args := m.Called(ctx, history, revealed, sinceAdvance)
	return args.Bool(0)
}

func (m *MockNarrator) PassiveChunk(chunk string, isLast bool) string {
	args := m.Called(chunk, isLast)
	return args.String(0)
}

func (m *MockNarrator) RandomEnding() string {
	args := m.Called()
	return args.String(0)
}
