package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session records one active period of a room, bounded by start/end
// timestamps. A room has at most one open session (EndedAt == nil) at a time.
type Session struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	RoomID           uuid.UUID       `json:"room_id" db:"room_id"`
	Mode             RoomMode        `json:"mode" db:"mode"`
	ParticipantCount int             `json:"participant_count" db:"participant_count"`
	StoryID          string          `json:"story_id" db:"story_id"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	EndedAt          *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	MessageCount     int             `json:"message_count" db:"message_count"`
	Metadata         json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}
