// Package eventbus provides the in-memory event bus implementation.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/buildrail/escrow/pkg/domain/events"
	"github.com/buildrail/escrow/pkg/eventbus"
)

// MemoryEventBus is a simple in-memory implementation of the EventBus
// interface. Handlers run synchronously on the publisher's goroutine.
type MemoryEventBus struct {
	handlers  map[string][]eventbus.Handler
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event // kept for assertions in tests
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		handlers:  make(map[string][]eventbus.Handler),
		logger:    logger.With("bus", "memory"),
		published: make([]events.Event, 0),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *MemoryEventBus) Subscribe(eventType string, handler eventbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish dispatches the event to every handler registered for its type.
func (b *MemoryEventBus) Publish(ctx context.Context, event events.Event) error {
	eventType := event.EventType()
	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	b.mu.Lock()
	b.published = append(b.published, event)
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
	return nil
}

// Published returns every event published so far. Useful in tests.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]events.Event, len(b.published))
	copy(out, b.published)
	return out
}

// ClearPublished resets the published-event record. Useful in tests.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = b.published[:0]
}

var _ eventbus.EventBus = (*MemoryEventBus)(nil)
