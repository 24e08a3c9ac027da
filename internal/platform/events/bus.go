// Package events is an in-process, synchronous domain event bus. Handlers run
// on the publisher's goroutine with the publisher's context, so they take part
// in whatever transaction the publisher holds.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event is a named domain fact.
type Event interface {
	EventName() string
}

type Handler func(ctx context.Context, e Event) error

// Publisher is the side of the bus that services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type subscription struct {
	name     string
	handler  Handler
	required bool
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers a required handler. Its error aborts Publish and is
// returned to the publisher.
func (b *Bus) Subscribe(event, name string, h Handler) {
	b.add(event, subscription{name: name, handler: h, required: true})
}

// Observe registers a best-effort handler. Its errors are logged and dropped.
func (b *Bus) Observe(event, name string, h Handler) {
	b.add(event, subscription{name: name, handler: h})
}

func (b *Bus) add(event string, s subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], s)
}

// Publish runs the handlers for e in registration order.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[e.EventName()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		err := s.handler(ctx, e)
		if err == nil {
			continue
		}
		if s.required {
			return fmt.Errorf("%s handler %s: %w", e.EventName(), s.name, err)
		}
		b.logger.Warn().Err(err).
			Str("event", e.EventName()).
			Str("handler", s.name).
			Msg("event observer failed")
	}
	return nil
}

// Handlers reports how many handlers are registered for event.
func (b *Bus) Handlers(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}
