package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewGenerationEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(GenerationEventCompleted, func(ctx context.Context, event GenerationEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(GenerationEventCompleted, func(ctx context.Context, event GenerationEvent) error {
		calledB = event.RunID == "run-1"
		return nil
	})

	if err := bus.Publish(context.Background(), GenerationEventCompleted, GenerationEvent{Type: GenerationEventCompleted, RunID: "run-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledA || !calledB {
		t.Fatalf("expected handlers to be called")
	}
}

func TestBusPublishOnlyMatchingType(t *testing.T) {
	bus := NewGenerationEventBus()
	called := false
	bus.Subscribe(GenerationEventFailed, func(ctx context.Context, event GenerationEvent) error {
		called = true
		return nil
	})

	if err := bus.Publish(context.Background(), GenerationEventCompleted, GenerationEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("handler for another event type must not be called")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewCatalogEventBus()
	called := false
	unsubscribe := bus.Subscribe(CatalogEventFormatChanged, func(ctx context.Context, event CatalogEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	if err := bus.Publish(context.Background(), CatalogEventFormatChanged, CatalogEvent{Type: CatalogEventFormatChanged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewCatalogEventBus()
	bus.Subscribe(CatalogEventFormatChanged, func(ctx context.Context, event CatalogEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(CatalogEventFormatChanged, func(ctx context.Context, event CatalogEvent) error {
		return errors.New("err-b")
	})

	if err := bus.Publish(context.Background(), CatalogEventFormatChanged, CatalogEvent{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBusNilHandler(t *testing.T) {
	bus := NewCatalogEventBus()
	unsubscribe := bus.Subscribe(CatalogEventReloaded, nil)
	unsubscribe()
	if err := bus.Publish(context.Background(), CatalogEventReloaded, CatalogEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
