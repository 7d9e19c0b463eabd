package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBus is an in-process Bus used by tests and backtests. It mimics the
// at-least-once contract: polled messages stay in flight until deleted.
type MemoryBus struct {
	mu       sync.Mutex
	subs     map[string][]string  // topic -> queues
	queues   map[string][]Message // queue -> pending
	inflight map[string]Message   // handle -> message
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:     make(map[string][]string),
		queues:   make(map[string][]Message),
		inflight: make(map[string]Message),
	}
}

func (b *MemoryBus) Subscribe(_ context.Context, queue, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.subs[topic] {
		if q == queue {
			return nil
		}
	}
	b.subs[topic] = append(b.subs[topic], queue)
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, queue := range b.subs[topic] {
		msg := Message{
			ID:     uuid.NewString(),
			Handle: uuid.NewString(),
			Body:   append([]byte(nil), payload...),
		}
		b.queues[queue] = append(b.queues[queue], msg)
	}
	return nil
}

func (b *MemoryBus) Poll(_ context.Context, queue string, max int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := b.queues[queue]
	if len(pending) == 0 {
		return nil, nil
	}
	n := max
	if n > len(pending) {
		n = len(pending)
	}
	out := make([]Message, n)
	copy(out, pending[:n])
	b.queues[queue] = pending[n:]
	for _, msg := range out {
		b.inflight[msg.Handle] = msg
	}
	return out, nil
}

func (b *MemoryBus) Delete(_ context.Context, _ string, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, handle)
	return nil
}

// Depth reports pending plus in-flight messages for a queue. Test helper.
func (b *MemoryBus) Depth(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue]) + len(b.inflight)
}

// Redeliver pushes every in-flight message back onto its queue. Tests use
// it to simulate the at-least-once redelivery window.
func (b *MemoryBus) Redeliver(queue string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for handle, msg := range b.inflight {
		b.queues[queue] = append(b.queues[queue], msg)
		delete(b.inflight, handle)
	}
}
