package database

import (
	"context"
	"encoding/json"
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
	createSessionSQL = `
		INSERT INTO sessions (room_id, mode, participant_count, story_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, room_id, mode, participant_count, story_id, started_at, ended_at, message_count, metadata`

	endSessionSQL = `
		UPDATE sessions
		SET ended_at = now(), message_count = $2, metadata = COALESCE($3, metadata)
		WHERE room_id = $1 AND ended_at IS NULL`

	getOpenSessionSQL = `
		SELECT id, room_id, mode, participant_count, story_id, started_at, ended_at, message_count, metadata
		FROM sessions
		WHERE room_id = $1 AND ended_at IS NULL`
)

type pgSessionRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgSessionRepository creates a PostgreSQL-backed SessionRepository.
func NewPgSessionRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.SessionRepository {
	return &pgSessionRepository{db: db, logger: logger.Named("PgSessionRepository")}
}

func (r *pgSessionRepository) Create(ctx context.Context, roomID uuid.UUID, mode models.RoomMode, participantCount int, storyID string) (*models.Session, error) {
	var session models.Session
	err := pgxscan.Get(ctx, r.db, &session, createSessionSQL, roomID, mode, participantCount, storyID)
	if err != nil {
		r.logger.Error("Failed to create session", zap.String("room_id", roomID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to create session for room %s: %w", roomID, err)
	}
	r.logger.Info("Session started",
		zap.String("session_id", session.ID.String()), zap.String("room_id", roomID.String()))
	return &session, nil
}

func (r *pgSessionRepository) End(ctx context.Context, roomID uuid.UUID, messageCount int, metadata json.RawMessage) error {
	tag, err := r.db.Exec(ctx, endSessionSQL, roomID, messageCount, metadata)
	if err != nil {
		r.logger.Error("Failed to end session", zap.String("room_id", roomID.String()), zap.Error(err))
		return fmt.Errorf("failed to end session for room %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already closed; ending is idempotent.
		r.logger.Debug("No open session to end", zap.String("room_id", roomID.String()))
	}
	return nil
}

func (r *pgSessionRepository) GetOpenByRoom(ctx context.Context, roomID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := pgxscan.Get(ctx, r.db, &session, getOpenSessionSQL, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get open session", zap.String("room_id", roomID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get open session for room %s: %w", roomID, err)
	}
	return &session, nil
}
