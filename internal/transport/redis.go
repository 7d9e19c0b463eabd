package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "reversion:"

// RedisBus implements Bus on Redis lists. Each queue is a list; Poll moves
// messages into a per-queue processing list so an acknowledged message is
// removed exactly once while an unacknowledged one can be recovered —
// at-least-once, like the SQS semantics it replaces.
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisBus connects to the given Redis address.
func NewRedisBus(addr string, log zerolog.Logger) *RedisBus {
	return &RedisBus{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		log:    log.With().Str("component", "redis_bus").Logger(),
	}
}

// Ping verifies connectivity.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

type envelope struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

func subsKey(topic string) string  { return keyPrefix + "subs:" + topic }
func queueKey(queue string) string { return keyPrefix + "queue:" + queue }
func procKey(queue string) string  { return keyPrefix + "processing:" + queue }

// Subscribe registers queue as a receiver for topic.
func (b *RedisBus) Subscribe(ctx context.Context, queue, topic string) error {
	if err := b.client.SAdd(ctx, subsKey(topic), queue).Err(); err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", queue, topic, err)
	}
	return nil
}

// Publish fans the payload out to every subscribed queue.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	queues, err := b.client.SMembers(ctx, subsKey(topic)).Result()
	if err != nil {
		return fmt.Errorf("resolve subscribers for %s: %w", topic, err)
	}
	raw, err := json.Marshal(envelope{ID: uuid.NewString(), Body: payload})
	if err != nil {
		return err
	}
	for _, queue := range queues {
		if err := b.client.LPush(ctx, queueKey(queue), raw).Err(); err != nil {
			return fmt.Errorf("publish to %s: %w", queue, err)
		}
	}
	return nil
}

// Poll moves up to max messages from the queue into its processing list.
func (b *RedisBus) Poll(ctx context.Context, queue string, max int) ([]Message, error) {
	var messages []Message
	for i := 0; i < max; i++ {
		raw, err := b.client.LMove(ctx, queueKey(queue), procKey(queue), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return messages, fmt.Errorf("poll %s: %w", queue, err)
		}
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// Malformed entries are dropped, not redelivered forever.
			b.log.Error().Err(err).Str("queue", queue).Msg("dropping undecodable message")
			b.client.LRem(ctx, procKey(queue), 1, raw)
			continue
		}
		messages = append(messages, Message{ID: env.ID, Handle: raw, Body: env.Body})
	}
	return messages, nil
}

// Delete acknowledges one processed message.
func (b *RedisBus) Delete(ctx context.Context, queue, handle string) error {
	removed, err := b.client.LRem(ctx, procKey(queue), 1, handle).Result()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", queue, err)
	}
	if removed == 0 {
		return fmt.Errorf("delete from %s: message not in processing list", queue)
	}
	return nil
}
