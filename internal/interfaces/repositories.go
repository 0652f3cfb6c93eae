// Package interfaces declares the persistence contracts consumed by the
// session controller. Implementations live in internal/database; tests use
// the mocks subpackage.
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"story-moderator/internal/models"
)

// DBTX abstracts a pgx pool, connection or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RoomRepository is the single source of truth for room state. The
// conditional mutations (ActivateIfWaiting, AdvanceProgress, CompleteIfActive)
// carry the compare-and-set semantics the advancement state machine relies on.
type RoomRepository interface {
	// Create inserts a new room in waiting status.
	Create(ctx context.Context, mode models.RoomMode, storyID string) (*models.Room, error)

	// GetByID returns the room or models.ErrRoomNotFound.
	GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error)

	// FindOrCreate returns an under-capacity waiting/active room for the mode,
	// oldest first, or atomically creates a new waiting room. Concurrent
	// callers observe the same room when one would have sufficed.
	FindOrCreate(ctx context.Context, mode models.RoomMode, storyID string, capacity int) (*models.Room, error)

	// ActivateIfWaiting flips waiting -> active and stamps started_at.
	// Returns false when the room was not in waiting status, which means
	// another caller already won the transition.
	ActivateIfWaiting(ctx context.Context, roomID uuid.UUID) (bool, error)

	// AdvanceProgress moves the story cursor forward. The update only applies
	// while the stored cursor is behind the new value, keeping progress
	// monotonic under overlapping writers.
	AdvanceProgress(ctx context.Context, roomID uuid.UUID, progress int, finished bool) error

	// CompleteIfActive flips active -> completed and stamps completed_at.
	// Returns false when the room was already completed.
	CompleteIfActive(ctx context.Context, roomID uuid.UUID) (bool, error)

	// IncrementParticipants bumps the cached participant counter.
	IncrementParticipants(ctx context.Context, roomID uuid.UUID) error
}

// ParticipantRepository persists room membership.
type ParticipantRepository interface {
	Add(ctx context.Context, roomID uuid.UUID, displayName, socketID string, isModerator bool) (*models.Participant, error)
	GetByRoom(ctx context.Context, roomID uuid.UUID) ([]*models.Participant, error)
	GetBySocketID(ctx context.Context, socketID string) (*models.Participant, error)
	// NextDisplayName generates the next auto-assigned name ("Student N").
	NextDisplayName(ctx context.Context, roomID uuid.UUID) (string, error)
	TouchActivity(ctx context.Context, participantID uuid.UUID) error
}

// MessageRepository is the append-only chat history store.
type MessageRepository interface {
	Add(ctx context.Context, msg *models.Message) (*models.Message, error)
	// GetHistory returns messages ordered by creation time ascending.
	// limit <= 0 returns the full history.
	GetHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.Message, error)
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error)
}

// SessionRepository records active periods of rooms.
type SessionRepository interface {
	Create(ctx context.Context, roomID uuid.UUID, mode models.RoomMode, participantCount int, storyID string) (*models.Session, error)
	// End closes the open session of the room (ended_at IS NULL guard) with
	// the final message count and metadata. Ending an already-closed session
	// is a no-op.
	End(ctx context.Context, roomID uuid.UUID, messageCount int, metadata json.RawMessage) error
	GetOpenByRoom(ctx context.Context, roomID uuid.UUID) (*models.Session, error)
}

// SessionCache caches the open session id per room so loop iterations avoid a
// table lookup. It is an accelerator only; the sessions table is authoritative.
type SessionCache interface {
	Set(ctx context.Context, roomID, sessionID uuid.UUID) error
	Get(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error)
	Delete(ctx context.Context, roomID uuid.UUID) error
}
