package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-moderator/internal/config"
	"story-moderator/internal/models"
	"story-moderator/internal/narrator"
)

// flakyRoomRepo fails a set number of GetByID calls before delegating,
// simulating transient store outages during a running session.
type flakyRoomRepo struct {
	*memRoomRepo
	mu       sync.Mutex
	failures int
}

func (r *flakyRoomRepo) arm(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
}

func (r *flakyRoomRepo) GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return nil, errors.New("read tcp: connection reset by peer")
	}
	r.mu.Unlock()
	return r.memRoomRepo.GetByID(ctx, roomID)
}

func newFlakyLifecycleService(t *testing.T, cfg *config.Config) (*SessionService, *memStore, *flakyRoomRepo, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	rooms := &flakyRoomRepo{memRoomRepo: &memRoomRepo{store: store}}
	publisher := &recordingPublisher{}

	n := narrator.New(nil, narrator.Options{
		Model:                "gpt-4o-mini",
		HistoryLimit:         cfg.ChatHistoryLimit,
		TokenBudget:          2000,
		PassiveEndingStyle:   cfg.PassiveEndingStyle,
		PassiveEndingMessage: cfg.PassiveEndingMessage,
		AdvanceFallbackAfter: cfg.AdvanceFallbackAfter,
	}, zap.NewNop())

	svc := NewSessionService(
		context.Background(),
		rooms,
		&memParticipantRepo{store: store},
		&memMessageRepo{store: store},
		&memSessionRepo{store: store},
		newMemSessionCache(),
		staticStories{story: &models.Story{
			StoryID:   "test-story",
			StoryName: "The Test Story",
			Context:   "A story used in tests.",
			Sentences: []string{"One.", "Two.", "Three.", "Four.", "Five.", "Six."},
		}},
		n, &recordingEmitter{}, publisher,
		NewLoopRegistry(zap.NewNop()), cfg, zap.NewNop(),
	)
	t.Cleanup(svc.Shutdown)
	return svc, store, rooms, publisher
}

func TestPassiveLoopSurvivesTransientRoomLoadFailure(t *testing.T) {
	cfg := testConfig()
	cfg.StoryChunkInterval = 10 * time.Millisecond
	cfg.PassiveStoryStep = 2
	cfg.PassiveEndingStyle = "plain"
	svc, store, rooms, publisher := newFlakyLifecycleService(t, cfg)

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "sock-1", "Ana", models.ModePassive)
	require.NoError(t, err)

	// Fail the next loads; the loop must keep ticking through them.
	rooms.arm(2)

	require.Eventually(t, func() bool {
		got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond, "loop died instead of retrying")

	got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.StoryProgress)
	assert.True(t, got.StoryFinished)
	assert.Len(t, publisher.named("session_ended"), 1)
}

func TestSilenceMonitorSurvivesTransientRoomLoadFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MonitorPollInterval = 5 * time.Millisecond
	cfg.ActiveInterventionWindow = 10 * time.Millisecond
	cfg.AdvanceFallbackAfter = time.Millisecond
	cfg.ActiveStoryStep = 3
	svc, store, rooms, publisher := newFlakyLifecycleService(t, cfg)

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "sock-1", "Ana", models.ModeActive)
	require.NoError(t, err)

	rooms.arm(3)

	require.Eventually(t, func() bool {
		got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond, "monitor died instead of retrying")

	got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.StoryProgress)
	assert.Len(t, publisher.named("session_ended"), 1)
}
