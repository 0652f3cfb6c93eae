package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies who authored a message and why.
type MessageType string

const (
	// MessageTypeChat is a participant-authored chat line.
	MessageTypeChat MessageType = "chat"
	// MessageTypeSystem is housekeeping output (welcome, endings).
	MessageTypeSystem MessageType = "system"
	// MessageTypeStory is a narration chunk that advanced the story.
	MessageTypeStory MessageType = "story"
	// MessageTypeModerator is conversational moderator output.
	MessageTypeModerator MessageType = "moderator"
)

// ModeratorName is the sender label used for all moderator-authored messages.
const ModeratorName = "Moderator"

// Message is one append-only chat history entry. Ordering by CreatedAt is the
// only ordering participants ever observe.
type Message struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	RoomID        uuid.UUID       `json:"room_id" db:"room_id"`
	ParticipantID *uuid.UUID      `json:"participant_id,omitempty" db:"participant_id"`
	SenderName    string          `json:"sender_name" db:"sender_name"`
	MessageText   string          `json:"message_text" db:"message_text"`
	MessageType   MessageType     `json:"message_type" db:"message_type"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// StoryMetadata is the metadata payload attached to narration messages.
type StoryMetadata struct {
	StoryProgress int  `json:"story_progress"`
	IsLast        bool `json:"is_last"`
}

// EngagementMetadata is attached to non-advancing moderator interventions.
type EngagementMetadata struct {
	Type          string `json:"type"`
	StoryProgress int    `json:"story_progress"`
}
