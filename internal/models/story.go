package models

import (
	"fmt"
	"strings"
)

// Story is an immutable pre-written narrative, revealed sentence by sentence.
type Story struct {
	StoryID   string   `json:"story_id"`
	StoryName string   `json:"story_name"`
	Context   string   `json:"context"`
	StoryText string   `json:"story_text"`
	Sentences []string `json:"sentences"`
}

// Total returns the number of sentences in the story.
func (s *Story) Total() int {
	return len(s.Sentences)
}

// Chunk returns the sentences in [start, start+step) joined with spaces,
// clamped to the end of the story, the new cursor position, and whether the
// returned chunk reaches the final sentence.
func (s *Story) Chunk(start, step int) (text string, end int, isLast bool) {
	total := len(s.Sentences)
	if start < 0 {
		start = 0
	}
	if start >= total {
		return "", total, true
	}
	end = start + step
	if end > total {
		end = total
	}
	return strings.Join(s.Sentences[start:end], " "), end, end >= total
}

// ContextUpTo returns the revealed story text up to the given cursor.
func (s *Story) ContextUpTo(progress int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > len(s.Sentences) {
		progress = len(s.Sentences)
	}
	return strings.Join(s.Sentences[:progress], " ")
}

// Intro derives the opening moderator line from the story's context, falling
// back to the story text, then to a bare title announcement.
func (s *Story) Intro() string {
	name := s.StoryName
	if name == "" {
		name = "our story"
	}
	if ctx := strings.TrimSpace(s.Context); ctx != "" {
		return fmt.Sprintf("Welcome to '%s'. %s", name, firstSentence(ctx))
	}
	if text := strings.TrimSpace(s.StoryText); text != "" {
		return fmt.Sprintf("Let's begin '%s'. %s", name, firstSentence(text))
	}
	return fmt.Sprintf("Let's begin our story: %s.", name)
}

func firstSentence(text string) string {
	if i := strings.Index(text, "."); i >= 0 {
		return strings.TrimSpace(text[:i]) + "."
	}
	return strings.TrimSpace(text) + "."
}
