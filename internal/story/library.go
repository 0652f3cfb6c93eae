// Package story loads the local story library used to seed rooms.
package story

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"story-moderator/internal/models"
)

// fallbackStory keeps rooms usable when the story directory is empty or
// unreadable.
var fallbackStory = models.Story{
	StoryID:   "fallback-lantern",
	StoryName: "The Lantern and the Little Dragon",
	Context: "On the edge of a misty village, a paper lantern flickered to life each dusk. " +
		"One evening, a tiny dragon curled around its handle, sneezing sparks that drew curious eyes. " +
		"The villagers, once afraid, learned the dragon was lonely, not dangerous. " +
		"They left bowls of rice outside their doors to keep its flame warm.",
	StoryText: "On the edge of a misty village stood a flickering lantern. One night, a tiny " +
		"dragon wrapped around it, sneezing sparks. The villagers discovered it was " +
		"lonely, not dangerous, so they fed it warm rice. Over time, the dragon " +
		"became their quiet guardian, lighting paths at night. The village grew safe " +
		"and peaceful as its golden flame glowed.",
	Sentences: []string{
		"On the edge of a misty village stood a flickering lantern.",
		"One night, a tiny dragon wrapped around it, sneezing sparks.",
		"The villagers discovered it was lonely, not dangerous.",
		"They fed it warm rice.",
		"The dragon became their quiet guardian, lighting paths at night.",
		"Its golden flame kept the village peaceful.",
	},
}

// Library reads story JSON files from a directory and caches them in memory.
type Library struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	stories map[string]*models.Story
}

// NewLibrary creates a Library over the given directory and loads it eagerly.
// A missing or empty directory is not an error; the fallback story serves
// every request instead.
func NewLibrary(dir string, logger *zap.Logger) *Library {
	l := &Library{
		dir:     dir,
		logger:  logger.Named("StoryLibrary"),
		stories: make(map[string]*models.Story),
	}
	if err := l.Reload(); err != nil {
		l.logger.Warn("Failed to load story directory, using fallback only",
			zap.String("dir", dir), zap.Error(err))
	}
	return l
}

// Reload rescans the directory, replacing the in-memory cache.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read story directory %s: %w", l.dir, err)
	}

	loaded := make(map[string]*models.Story)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("Skipping unreadable story file", zap.String("file", path), zap.Error(err))
			continue
		}
		var s models.Story
		if err := json.Unmarshal(data, &s); err != nil {
			l.logger.Warn("Skipping malformed story file", zap.String("file", path), zap.Error(err))
			continue
		}
		if s.StoryID == "" {
			s.StoryID = strings.TrimSuffix(entry.Name(), ".json")
		}
		if len(s.Sentences) == 0 {
			l.logger.Warn("Skipping story without sentences", zap.String("story_id", s.StoryID))
			continue
		}
		loaded[s.StoryID] = &s
	}

	l.mu.Lock()
	l.stories = loaded
	l.mu.Unlock()
	l.logger.Info("Story library loaded", zap.Int("count", len(loaded)), zap.String("dir", l.dir))
	return nil
}

// Get returns the requested story, a random one when storyID is empty or
// unknown, or the fallback when the library is empty. It never fails.
func (l *Library) Get(storyID string) *models.Story {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if storyID != "" {
		if s, ok := l.stories[storyID]; ok {
			return s
		}
		if storyID == fallbackStory.StoryID {
			return &fallbackStory
		}
		l.logger.Warn("Story not found, picking random", zap.String("story_id", storyID))
	}

	if len(l.stories) == 0 {
		return &fallbackStory
	}
	ids := make([]string, 0, len(l.stories))
	for id := range l.stories {
		ids = append(ids, id)
	}
	return l.stories[ids[rand.Intn(len(ids))]]
}

// List returns the available story ids in sorted order.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.stories))
	for id := range l.stories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
