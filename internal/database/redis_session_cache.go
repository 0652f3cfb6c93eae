package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"story-moderator/internal/interfaces"
	"story-moderator/internal/models"
)

const (
	sessionCacheKeyPrefix = "room_session:"
	sessionCacheTTL       = 24 * time.Hour
)

type redisSessionCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSessionCache creates a Redis-backed SessionCache mapping room ids to
// their open session ids.
func NewRedisSessionCache(client *redis.Client, logger *zap.Logger) interfaces.SessionCache {
	return &redisSessionCache{client: client, logger: logger.Named("RedisSessionCache")}
}

func sessionCacheKey(roomID uuid.UUID) string {
	return sessionCacheKeyPrefix + roomID.String()
}

func (c *redisSessionCache) Set(ctx context.Context, roomID, sessionID uuid.UUID) error {
	if err := c.client.Set(ctx, sessionCacheKey(roomID), sessionID.String(), sessionCacheTTL).Err(); err != nil {
		c.logger.Error("Failed to cache session id", zap.String("room_id", roomID.String()), zap.Error(err))
		return fmt.Errorf("failed to cache session for room %s: %w", roomID, err)
	}
	return nil
}

func (c *redisSessionCache) Get(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	val, err := c.client.Get(ctx, sessionCacheKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrNotFound
		}
		c.logger.Error("Failed to read cached session id", zap.String("room_id", roomID.String()), zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to read cached session for room %s: %w", roomID, err)
	}
	sessionID, err := uuid.Parse(val)
	if err != nil {
		// Corrupt entry; treat as a miss so the caller falls back to the table.
		c.logger.Warn("Dropping malformed session cache entry",
			zap.String("room_id", roomID.String()), zap.String("value", val))
		_ = c.client.Del(ctx, sessionCacheKey(roomID)).Err()
		return uuid.Nil, models.ErrNotFound
	}
	return sessionID, nil
}

func (c *redisSessionCache) Delete(ctx context.Context, roomID uuid.UUID) error {
	if err := c.client.Del(ctx, sessionCacheKey(roomID)).Err(); err != nil {
		c.logger.Error("Failed to delete cached session id", zap.String("room_id", roomID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete cached session for room %s: %w", roomID, err)
	}
	return nil
}

// NoopSessionCache is used when Redis is not configured; every lookup misses.
type NoopSessionCache struct{}

func (NoopSessionCache) Set(ctx context.Context, roomID, sessionID uuid.UUID) error { return nil }
func (NoopSessionCache) Get(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, models.ErrNotFound
}
func (NoopSessionCache) Delete(ctx context.Context, roomID uuid.UUID) error { return nil }
