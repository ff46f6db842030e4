// Package event provides the in-process domain event bus.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/cyclecount/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Handler processes a single domain event
type Handler func(ctx context.Context, event shared.DomainEvent) error

// InMemoryBus dispatches domain events synchronously to subscribed handlers.
// A failing handler is logged and skipped; publication never fails because a
// subscriber does.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewInMemoryBus creates an empty bus
func NewInMemoryBus(logger *zap.Logger) *InMemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event types
func (b *InMemoryBus) Subscribe(handler Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, et := range eventTypes {
		b.handlers[et] = append(b.handlers[et], handler)
	}
}

// Publish dispatches the event to every handler subscribed to its type
func (b *InMemoryBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.dispatch(ctx, handler, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err))
		}
	}
	return nil
}

func (b *InMemoryBus) dispatch(ctx context.Context, handler Handler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

var _ shared.EventBus = (*InMemoryBus)(nil)

// LoggingHandler returns a handler that records each event at info level,
// giving deployments without a downstream consumer an audit trail in the
// structured log stream.
func LoggingHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, e shared.DomainEvent) error {
		logger.Info("domain event",
			zap.String("event_type", e.EventType()),
			zap.String("aggregate_type", e.AggregateType()),
			zap.String("aggregate_id", e.AggregateID().String()),
			zap.Time("occurred_at", e.OccurredAt()))
		return nil
	}
}
