package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testStory() *Story {
	return &Story{
		StoryID:   "test-story",
		StoryName: "The Test Story",
		Context:   "A story used in tests. It has several sentences.",
		Sentences: []string{"One.", "Two.", "Three.", "Four.", "Five.", "Six."},
	}
}

func TestStoryChunk(t *testing.T) {
	s := testStory()

	text, end, isLast := s.Chunk(0, 2)
	assert.Equal(t, "One. Two.", text)
	assert.Equal(t, 2, end)
	assert.False(t, isLast)

	text, end, isLast = s.Chunk(4, 2)
	assert.Equal(t, "Five. Six.", text)
	assert.Equal(t, 6, end)
	assert.True(t, isLast)
}

func TestStoryChunkClampsPastEnd(t *testing.T) {
	s := testStory()

	text, end, isLast := s.Chunk(5, 3)
	assert.Equal(t, "Six.", text)
	assert.Equal(t, 6, end)
	assert.True(t, isLast)

	text, end, isLast = s.Chunk(6, 1)
	assert.Empty(t, text)
	assert.Equal(t, 6, end)
	assert.True(t, isLast)

	text, end, isLast = s.Chunk(-2, 1)
	assert.Equal(t, "One.", text)
	assert.Equal(t, 1, end)
	assert.False(t, isLast)
}

func TestStoryContextUpTo(t *testing.T) {
	s := testStory()
	assert.Equal(t, "", s.ContextUpTo(0))
	assert.Equal(t, "One. Two. Three.", s.ContextUpTo(3))
	assert.Equal(t, "One. Two. Three. Four. Five. Six.", s.ContextUpTo(99))
}

func TestStoryIntro(t *testing.T) {
	s := testStory()
	assert.Equal(t, "Welcome to 'The Test Story'. A story used in tests.", s.Intro())

	s.Context = ""
	s.StoryText = "It began somewhere. It ended elsewhere."
	assert.Equal(t, "Let's begin 'The Test Story'. It began somewhere.", s.Intro())

	s.StoryText = ""
	assert.Equal(t, "Let's begin our story: The Test Story.", s.Intro())
}
