// Package eventbus defines the in-process publish/subscribe contract for
// domain events. The memory implementation lives in infra/eventbus.
package eventbus

import (
	"context"

	"github.com/buildrail/escrow/pkg/domain/events"
)

// Handler consumes one event. Handlers must not block; anything slow belongs
// in the handler's own goroutine.
type Handler func(ctx context.Context, event events.Event)

// EventBus is the publish/subscribe contract.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
	Subscribe(eventType string, handler Handler)
}
