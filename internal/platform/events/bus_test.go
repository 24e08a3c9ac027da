package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type testEvent struct{ id string }

func (testEvent) EventName() string { return "test.happened" }

func TestPublish_RunsHandlersInOrder(t *testing.T) {
	b := NewBus(zerolog.Nop())
	var order []string
	b.Subscribe("test.happened", "first", func(ctx context.Context, e Event) error {
		order = append(order, "first:"+e.(testEvent).id)
		return nil
	})
	b.Observe("test.happened", "second", func(ctx context.Context, e Event) error {
		order = append(order, "second:"+e.(testEvent).id)
		return nil
	})

	if err := b.Publish(context.Background(), testEvent{id: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first:1" || order[1] != "second:1" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestPublish_RequiredFailureAborts(t *testing.T) {
	b := NewBus(zerolog.Nop())
	boom := errors.New("boom")
	var after bool
	b.Subscribe("test.happened", "failing", func(context.Context, Event) error { return boom })
	b.Subscribe("test.happened", "after", func(context.Context, Event) error {
		after = true
		return nil
	})

	err := b.Publish(context.Background(), testEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if after {
		t.Error("handlers after a required failure must not run")
	}
}

func TestPublish_ObserverFailureIsSwallowed(t *testing.T) {
	b := NewBus(zerolog.Nop())
	b.Observe("test.happened", "flaky", func(context.Context, Event) error { return errors.New("smtp down") })

	if err := b.Publish(context.Background(), testEvent{}); err != nil {
		t.Errorf("observer errors must not propagate, got %v", err)
	}
}

func TestPublish_NoHandlers(t *testing.T) {
	b := NewBus(zerolog.Nop())
	if err := b.Publish(context.Background(), testEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if b.Handlers("test.happened") != 0 {
		t.Error("expected no handlers")
	}
}
