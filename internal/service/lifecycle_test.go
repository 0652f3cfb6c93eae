package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-moderator/internal/config"
	"story-moderator/internal/models"
	"story-moderator/internal/narrator"
)

// newLifecycleService wires the service against in-memory repositories and a
// fallback-only narrator so full advancement runs can execute for real.
func newLifecycleService(t *testing.T, cfg *config.Config) (*SessionService, *memStore, *recordingEmitter, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	emitter := &recordingEmitter{}
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
		&memRoomRepo{store: store},
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
		n, emitter, publisher,
		NewLoopRegistry(zap.NewNop()), cfg, zap.NewNop(),
	)
	t.Cleanup(svc.Shutdown)
	return svc, store, emitter, publisher
}

func TestPassiveRoomRunsToCompletion(t *testing.T) {
	cfg := testConfig()
	cfg.StoryChunkInterval = 10 * time.Millisecond
	cfg.PassiveStoryStep = 2
	cfg.PassiveEndingStyle = "plain"
	svc, store, _, publisher := newLifecycleService(t, cfg)

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "sock-1", "Ana", models.ModePassive)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond, "room never completed")

	got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.StoryFinished)
	assert.Equal(t, 6, got.StoryProgress)

	// Three chunks of two sentences, cursor landing on 2, 4, 6. The intro is
	// the first story message.
	messages := &memMessageRepo{store: store}
	storyMsgs := messages.byType(room.ID, models.MessageTypeStory)
	require.Len(t, storyMsgs, 4)
	var cursors []int
	for _, m := range storyMsgs[1:] {
		var meta models.StoryMetadata
		require.NoError(t, json.Unmarshal(m.Metadata, &meta))
		cursors = append(cursors, meta.StoryProgress)
	}
	assert.Equal(t, []int{2, 4, 6}, cursors)
	assert.Equal(t, "One. Two.", storyMsgs[1].MessageText)
	assert.Equal(t, "Five. Six. And that is where our story ends.", storyMsgs[3].MessageText)

	// Welcome plus exactly one ending, despite further ticks being possible.
	systemMsgs := messages.byType(room.ID, models.MessageTypeSystem)
	require.Len(t, systemMsgs, 2)
	assert.NotEmpty(t, systemMsgs[1].MessageText)
	assert.NotEqual(t, cfg.WelcomeMessage, systemMsgs[1].MessageText)

	assert.Len(t, publisher.named("session_started"), 1)
	assert.Len(t, publisher.named("session_ended"), 1)

	session := store.sessions[room.ID]
	require.NotNil(t, session)
	assert.NotNil(t, session.EndedAt)
}

func TestConcurrentJoinsStartStoryOnce(t *testing.T) {
	cfg := testConfig()
	svc, store, _, publisher := newLifecycleService(t, cfg)

	ctx := context.Background()
	roomRepo := &memRoomRepo{store: store}
	room, err := roomRepo.Create(ctx, models.ModePassive, "test-story")
	require.NoError(t, err)
	_, err = (&memParticipantRepo{store: store}).Add(ctx, room.ID, "Student 1", "sock-1", false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.TryStartStory(ctx, room.ID)
		}()
	}
	wg.Wait()

	got, err := roomRepo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	// Exactly one winner: one intro, one session, one start event.
	storyMsgs := (&memMessageRepo{store: store}).byType(room.ID, models.MessageTypeStory)
	assert.Len(t, storyMsgs, 1)
	assert.Len(t, publisher.named("session_started"), 1)
	assert.True(t, svc.registry.Running(room.ID))
}

func TestActiveRoomEngagesThenAdvances(t *testing.T) {
	cfg := testConfig()
	cfg.MonitorPollInterval = 5 * time.Millisecond
	cfg.ActiveInterventionWindow = 15 * time.Millisecond
	cfg.AdvanceFallbackAfter = 60 * time.Millisecond
	cfg.ActiveStoryStep = 6
	svc, store, _, publisher := newLifecycleService(t, cfg)

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "sock-1", "Ana", models.ModeActive)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := (&memRoomRepo{store: store}).GetByID(ctx, room.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond, "room never completed")

	messages := &memMessageRepo{store: store}
	moderatorMsgs := messages.byType(room.ID, models.MessageTypeModerator)
	require.NotEmpty(t, moderatorMsgs)

	// The first intervention falls inside the fallback window, so the
	// narrator engages; a later one advances and finishes the story.
	var meta models.EngagementMetadata
	require.NoError(t, json.Unmarshal(moderatorMsgs[0].Metadata, &meta))
	assert.Equal(t, "engagement", meta.Type)

	last := moderatorMsgs[len(moderatorMsgs)-1]
	var storyMeta models.StoryMetadata
	require.NoError(t, json.Unmarshal(last.Metadata, &storyMeta))
	assert.True(t, storyMeta.IsLast)
	assert.Equal(t, 6, storyMeta.StoryProgress)

	// One ending, one ended session.
	systemMsgs := messages.byType(room.ID, models.MessageTypeSystem)
	require.Len(t, systemMsgs, 2)
	assert.Equal(t, cfg.ActiveEndingMessage, systemMsgs[1].MessageText)
	assert.Len(t, publisher.named("session_ended"), 1)
}

func TestChatDuringPassiveRunIsBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.StoryChunkInterval = 20 * time.Millisecond
	svc, store, emitter, _ := newLifecycleService(t, cfg)

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "sock-1", "Ana", models.ModePassive)
	require.NoError(t, err)

	svc.HandleMessage(ctx, "sock-1", room.ID, "Ana", "I love this part")

	chats := (&memMessageRepo{store: store}).byType(room.ID, models.MessageTypeChat)
	require.Len(t, chats, 1)
	assert.Equal(t, "I love this part", chats[0].MessageText)

	found := false
	for _, payload := range emitter.messagesOf(EventReceiveMessage) {
		if payload.Sender == "Ana" && payload.Message == "I love this part" {
			found = true
		}
	}
	assert.True(t, found)
}
