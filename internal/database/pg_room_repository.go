package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"story-moderator/internal/interfaces"
	"story-moderator/internal/models"
)

const (
	createRoomSQL = `
		INSERT INTO rooms (mode, story_id)
		VALUES ($1, $2)
		RETURNING id, mode, status, story_id, story_progress, story_finished,
		          current_participants, created_at, started_at, completed_at`

	getRoomByIDSQL = `
		SELECT id, mode, status, story_id, story_progress, story_finished,
		       current_participants, created_at, started_at, completed_at
		FROM rooms
		WHERE id = $1`

	// assignmentLockSQL serializes room assignment per mode for the duration
	// of the enclosing transaction. Under READ COMMITTED two concurrent
	// callers would otherwise both snapshot an empty candidate set and both
	// insert.
	assignmentLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	// findOrCreateRoomSQL assigns a caller to the oldest joinable room of the
	// requested mode, or inserts a fresh waiting room when none exists. Must
	// run in a transaction holding the per-mode assignment lock. A room is
	// joinable while it has spare capacity and its story has not finished.
	findOrCreateRoomSQL = `
		WITH candidate AS (
			SELECT id FROM rooms
			WHERE mode = $1
			  AND status IN ('waiting', 'active')
			  AND story_finished = FALSE
			  AND current_participants < $3
			ORDER BY created_at ASC
			LIMIT 1
		), created AS (
			INSERT INTO rooms (mode, story_id)
			SELECT $1, $2
			WHERE NOT EXISTS (SELECT 1 FROM candidate)
			RETURNING id
		)
		SELECT r.id, r.mode, r.status, r.story_id, r.story_progress,
		       r.story_finished, r.current_participants, r.created_at,
		       r.started_at, r.completed_at
		FROM rooms r
		WHERE r.id IN (SELECT id FROM candidate UNION ALL SELECT id FROM created)`

	activateRoomSQL = `
		UPDATE rooms
		SET status = 'active', started_at = now()
		WHERE id = $1 AND status = 'waiting'`

	advanceProgressSQL = `
		UPDATE rooms
		SET story_progress = $2, story_finished = story_finished OR $3
		WHERE id = $1 AND story_progress < $2`

	completeRoomSQL = `
		UPDATE rooms
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'active'`

	incrementParticipantsSQL = `
		UPDATE rooms
		SET current_participants = current_participants + 1
		WHERE id = $1`
)

type pgRoomRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgRoomRepository creates a PostgreSQL-backed RoomRepository.
func NewPgRoomRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.RoomRepository {
	return &pgRoomRepository{db: db, logger: logger.Named("PgRoomRepository")}
}

func (r *pgRoomRepository) Create(ctx context.Context, mode models.RoomMode, storyID string) (*models.Room, error) {
	var room models.Room
	if err := pgxscan.Get(ctx, r.db, &room, createRoomSQL, mode, storyID); err != nil {
		r.logger.Error("Failed to create room", zap.String("mode", string(mode)), zap.Error(err))
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	r.logger.Info("Room created", zap.String("room_id", room.ID.String()), zap.String("mode", string(mode)))
	return &room, nil
}

func (r *pgRoomRepository) GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := pgxscan.Get(ctx, r.db, &room, getRoomByIDSQL, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRoomNotFound
		}
		r.logger.Error("Failed to get room", zap.String("room_id", roomID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return &room, nil
}

func (r *pgRoomRepository) FindOrCreate(ctx context.Context, mode models.RoomMode, storyID string, capacity int) (*models.Room, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin assignment transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, assignmentLockSQL, string(mode)); err != nil {
		r.logger.Error("Failed to acquire assignment lock", zap.String("mode", string(mode)), zap.Error(err))
		return nil, fmt.Errorf("failed to acquire assignment lock: %w", err)
	}

	var room models.Room
	if err := pgxscan.Get(ctx, tx, &room, findOrCreateRoomSQL, mode, storyID, capacity); err != nil {
		r.logger.Error("Failed to find or create room", zap.String("mode", string(mode)), zap.Error(err))
		return nil, fmt.Errorf("failed to find or create room: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit room assignment: %w", err)
	}
	return &room, nil
}

func (r *pgRoomRepository) ActivateIfWaiting(ctx context.Context, roomID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, activateRoomSQL, roomID)
	if err != nil {
		r.logger.Error("Failed to activate room", zap.String("room_id", roomID.String()), zap.Error(err))
		return false, fmt.Errorf("failed to activate room %s: %w", roomID, err)
	}
	won := tag.RowsAffected() > 0
	if won {
		r.logger.Info("Room activated", zap.String("room_id", roomID.String()))
	}
	return won, nil
}

func (r *pgRoomRepository) AdvanceProgress(ctx context.Context, roomID uuid.UUID, progress int, finished bool) error {
	// The story_progress < $2 guard keeps the cursor monotonic; a stale writer
	// simply affects zero rows.
	if _, err := r.db.Exec(ctx, advanceProgressSQL, roomID, progress, finished); err != nil {
		r.logger.Error("Failed to advance story progress",
			zap.String("room_id", roomID.String()), zap.Int("progress", progress), zap.Error(err))
		return fmt.Errorf("failed to advance progress for room %s: %w", roomID, err)
	}
	return nil
}

func (r *pgRoomRepository) CompleteIfActive(ctx context.Context, roomID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, completeRoomSQL, roomID)
	if err != nil {
		r.logger.Error("Failed to complete room", zap.String("room_id", roomID.String()), zap.Error(err))
		return false, fmt.Errorf("failed to complete room %s: %w", roomID, err)
	}
	won := tag.RowsAffected() > 0
	if won {
		r.logger.Info("Room completed", zap.String("room_id", roomID.String()))
	}
	return won, nil
}

func (r *pgRoomRepository) IncrementParticipants(ctx context.Context, roomID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, incrementParticipantsSQL, roomID); err != nil {
		r.logger.Error("Failed to increment participants", zap.String("room_id", roomID.String()), zap.Error(err))
		return fmt.Errorf("failed to increment participants for room %s: %w", roomID, err)
	}
	return nil
}
