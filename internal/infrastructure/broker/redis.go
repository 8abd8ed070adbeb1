// Package broker delivers outbox messages to Redis pub/sub.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"invencare/internal/infrastructure/outbox"
	"invencare/pkg/logger"
)

// ChannelPrefix precedes the event type in channel names.
const ChannelPrefix = "invencare."

// Envelope is the JSON published for each message.
type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher is the part of the redis client the handler needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisHandler implements outbox.Handler.
type RedisHandler struct {
	client Publisher
}

var _ outbox.Handler = (*RedisHandler)(nil)

// NewRedisHandler creates a handler publishing through client.
func NewRedisHandler(client Publisher) *RedisHandler {
	return &RedisHandler{client: client}
}

// Channel returns the pub/sub channel for an event type.
func Channel(eventType string) string {
	return ChannelPrefix + eventType
}

func (h *RedisHandler) Handle(ctx context.Context, msg *outbox.Message) error {
	body, err := json.Marshal(NewEnvelope(msg))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	receivers, err := h.client.Publish(ctx, Channel(msg.EventType), body).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	logger.Debug(ctx, "event published",
		"event_type", msg.EventType, "message_id", msg.ID, "receivers", receivers)
	return nil
}

// NewEnvelope wraps msg for the wire.
func NewEnvelope(msg *outbox.Message) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID.String(),
		EventType:     msg.EventType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		Payload:       payload,
		OccurredAt:    msg.CreatedAt,
	}
}
