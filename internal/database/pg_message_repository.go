package database

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-moderator/internal/interfaces"
	"story-moderator/internal/models"
)

const (
	addMessageSQL = `
		INSERT INTO messages (room_id, participant_id, sender_name, message_text, message_type, metadata)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'::jsonb))
		RETURNING id, room_id, participant_id, sender_name, message_text, message_type, metadata, created_at`

	getHistorySQL = `
		SELECT id, room_id, participant_id, sender_name, message_text, message_type, metadata, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC`

	// getHistoryTailSQL returns the newest N rows flipped back to ascending
	// order so callers always receive chronological history.
	getHistoryTailSQL = `
		SELECT id, room_id, participant_id, sender_name, message_text, message_type, metadata, created_at
		FROM (
			SELECT id, room_id, participant_id, sender_name, message_text, message_type, metadata, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) tail
		ORDER BY created_at ASC`

	countMessagesSQL = `SELECT COUNT(*) FROM messages WHERE room_id = $1`
)

type pgMessageRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgMessageRepository creates a PostgreSQL-backed MessageRepository.
func NewPgMessageRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.MessageRepository {
	return &pgMessageRepository{db: db, logger: logger.Named("PgMessageRepository")}
}

func (r *pgMessageRepository) Add(ctx context.Context, msg *models.Message) (*models.Message, error) {
	var stored models.Message
	err := pgxscan.Get(ctx, r.db, &stored, addMessageSQL,
		msg.RoomID, msg.ParticipantID, msg.SenderName, msg.MessageText, msg.MessageType, msg.Metadata)
	if err != nil {
		r.logger.Error("Failed to store message",
			zap.String("room_id", msg.RoomID.String()), zap.String("type", string(msg.MessageType)), zap.Error(err))
		return nil, fmt.Errorf("failed to store message in room %s: %w", msg.RoomID, err)
	}
	return &stored, nil
}

func (r *pgMessageRepository) GetHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	var err error
	if limit <= 0 {
		err = pgxscan.Select(ctx, r.db, &messages, getHistorySQL, roomID)
	} else {
		err = pgxscan.Select(ctx, r.db, &messages, getHistoryTailSQL, roomID, limit)
	}
	if err != nil {
		r.logger.Error("Failed to load chat history", zap.String("room_id", roomID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to load history of room %s: %w", roomID, err)
	}
	return messages, nil
}

func (r *pgMessageRepository) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	if err := pgxscan.Get(ctx, r.db, &count, countMessagesSQL, roomID); err != nil {
		r.logger.Error("Failed to count messages", zap.String("room_id", roomID.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to count messages of room %s: %w", roomID, err)
	}
	return count, nil
}
