package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a member of a room. The moderator is a logical role, not a
// stored participant, so IsModerator is false for every human connection; the
// flag exists so history exports can distinguish synthetic rows if they are
// ever inserted.
type Participant struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	RoomID       uuid.UUID  `json:"room_id" db:"room_id"`
	DisplayName  string     `json:"display_name" db:"display_name"`
	SocketID     string     `json:"socket_id" db:"socket_id"`
	IsModerator  bool       `json:"is_moderator" db:"is_moderator"`
	JoinedAt     time.Time  `json:"joined_at" db:"joined_at"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty" db:"last_active_at"`
}
