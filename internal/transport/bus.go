// Package transport is the publish/subscribe boundary between the market
// data feed and the strategy services. Delivery is at-least-once: consumers
// must tolerate redelivered messages and delete only after processing.
package transport

import "context"

// Message is one queued payload plus the handle needed to delete it.
type Message struct {
	ID     string
	Handle string
	Body   []byte
}

// Bus is the messaging capability the engine depends on.
type Bus interface {
	// Publish fans a payload out to every queue subscribed to topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe binds a queue to a topic. Idempotent.
	Subscribe(ctx context.Context, queue, topic string) error
	// Poll receives up to max messages without removing them permanently.
	Poll(ctx context.Context, queue string, max int) ([]Message, error)
	// Delete acknowledges a message so it is not redelivered.
	Delete(ctx context.Context, queue, handle string) error
}
