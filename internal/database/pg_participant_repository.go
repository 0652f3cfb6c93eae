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
	addParticipantSQL = `
		INSERT INTO participants (room_id, display_name, socket_id, is_moderator)
		VALUES ($1, $2, $3, $4)
		RETURNING id, room_id, display_name, socket_id, is_moderator, joined_at, last_active_at`

	getParticipantsByRoomSQL = `
		SELECT id, room_id, display_name, socket_id, is_moderator, joined_at, last_active_at
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at ASC`

	getParticipantBySocketSQL = `
		SELECT id, room_id, display_name, socket_id, is_moderator, joined_at, last_active_at
		FROM participants
		WHERE socket_id = $1
		ORDER BY joined_at DESC
		LIMIT 1`

	countParticipantsSQL = `SELECT COUNT(*) FROM participants WHERE room_id = $1 AND is_moderator = FALSE`

	touchActivitySQL = `UPDATE participants SET last_active_at = now() WHERE id = $1`
)

type pgParticipantRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgParticipantRepository creates a PostgreSQL-backed ParticipantRepository.
func NewPgParticipantRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ParticipantRepository {
	return &pgParticipantRepository{db: db, logger: logger.Named("PgParticipantRepository")}
}

func (r *pgParticipantRepository) Add(ctx context.Context, roomID uuid.UUID, displayName, socketID string, isModerator bool) (*models.Participant, error) {
	var p models.Participant
	if err := pgxscan.Get(ctx, r.db, &p, addParticipantSQL, roomID, displayName, socketID, isModerator); err != nil {
		r.logger.Error("Failed to add participant",
			zap.String("room_id", roomID.String()), zap.String("display_name", displayName), zap.Error(err))
		return nil, fmt.Errorf("failed to add participant to room %s: %w", roomID, err)
	}
	r.logger.Info("Participant added",
		zap.String("room_id", roomID.String()), zap.String("display_name", displayName))
	return &p, nil
}

func (r *pgParticipantRepository) GetByRoom(ctx context.Context, roomID uuid.UUID) ([]*models.Participant, error) {
	var participants []*models.Participant
	if err := pgxscan.Select(ctx, r.db, &participants, getParticipantsByRoomSQL, roomID); err != nil {
		r.logger.Error("Failed to list participants", zap.String("room_id", roomID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list participants of room %s: %w", roomID, err)
	}
	return participants, nil
}

func (r *pgParticipantRepository) GetBySocketID(ctx context.Context, socketID string) (*models.Participant, error) {
	var p models.Participant
	err := pgxscan.Get(ctx, r.db, &p, getParticipantBySocketSQL, socketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrParticipantNotFound
		}
		r.logger.Error("Failed to get participant by socket", zap.String("socket_id", socketID), zap.Error(err))
		return nil, fmt.Errorf("failed to get participant by socket %s: %w", socketID, err)
	}
	return &p, nil
}

func (r *pgParticipantRepository) NextDisplayName(ctx context.Context, roomID uuid.UUID) (string, error) {
	var count int
	if err := pgxscan.Get(ctx, r.db, &count, countParticipantsSQL, roomID); err != nil {
		r.logger.Error("Failed to count participants", zap.String("room_id", roomID.String()), zap.Error(err))
		return "", fmt.Errorf("failed to count participants of room %s: %w", roomID, err)
	}
	return fmt.Sprintf("Student %d", count+1), nil
}

func (r *pgParticipantRepository) TouchActivity(ctx context.Context, participantID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, touchActivitySQL, participantID); err != nil {
		r.logger.Error("Failed to touch participant activity",
			zap.String("participant_id", participantID.String()), zap.Error(err))
		return fmt.Errorf("failed to touch activity of participant %s: %w", participantID, err)
	}
	return nil
}
