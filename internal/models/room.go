package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomMode defines the pacing policy of a room.
type RoomMode string

const (
	// ModeActive advances the story based on discussion state.
	ModeActive RoomMode = "active"
	// ModePassive advances the story on a fixed cadence.
	ModePassive RoomMode = "passive"
)

// IsValid reports whether the mode is one of the known pacing policies.
func (m RoomMode) IsValid() bool {
	return m == ModeActive || m == ModePassive
}

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	// StatusWaiting means the room exists but the story has not started yet.
	StatusWaiting RoomStatus = "waiting"
	// StatusActive means the story is in progress.
	StatusActive RoomStatus = "active"
	// StatusCompleted is terminal; no further narration is produced.
	StatusCompleted RoomStatus = "completed"
)

// Room groups participants around one story instance.
//
// StoryProgress is a monotonically non-decreasing cursor into the story's
// sentence sequence. StoryFinished is set exactly once and implies the room
// reaches StatusCompleted.
type Room struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	Mode                RoomMode   `json:"mode" db:"mode"`
	Status              RoomStatus `json:"status" db:"status"`
	StoryID             string     `json:"story_id" db:"story_id"`
	StoryProgress       int        `json:"story_progress" db:"story_progress"`
	StoryFinished       bool       `json:"story_finished" db:"story_finished"`
	CurrentParticipants int        `json:"current_participants" db:"current_participants"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
