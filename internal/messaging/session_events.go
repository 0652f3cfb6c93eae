// Package messaging publishes session lifecycle events to RabbitMQ so
// downstream analytics can consume them without coupling to the database.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Event names published to the session exchange.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
)

// SessionEvent is the published payload.
type SessionEvent struct {
	Event            string    `json:"event"`
	SessionID        string    `json:"session_id"`
	RoomID           string    `json:"room_id"`
	Mode             string    `json:"mode"`
	StoryID          string    `json:"story_id"`
	ParticipantCount int       `json:"participant_count"`
	MessageCount     int       `json:"message_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// SessionEventPublisher pushes session lifecycle events to interested parties.
type SessionEventPublisher interface {
	Publish(ctx context.Context, event SessionEvent) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewAmqpPublisher connects to RabbitMQ and declares a durable fanout
// exchange for session events.
func NewAmqpPublisher(amqpURL, exchangeName string, logger *zap.Logger) (SessionEventPublisher, error) {
	log := logger.Named("SessionEventPublisher")

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	log.Info("Session event publisher connected", zap.String("exchange", exchangeName))
	return &amqpPublisher{conn: conn, channel: channel, exchange: exchangeName, logger: log}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, event SessionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
	if err != nil {
		p.logger.Error("Failed to publish session event",
			zap.String("event", event.Event), zap.String("room_id", event.RoomID), zap.Error(err))
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	p.logger.Debug("Session event published",
		zap.String("event", event.Event), zap.String("room_id", event.RoomID))
	return nil
}

func (p *amqpPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("Failed to close RabbitMQ channel", zap.Error(err))
	}
	return p.conn.Close()
}

// NoopPublisher is used when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event SessionEvent) error { return nil }
func (NoopPublisher) Close() error                                          { return nil }
