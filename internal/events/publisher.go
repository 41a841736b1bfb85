package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/noema-platform/noema/internal/memory"
)

// Publisher publishes memory events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends one memory event to its subject.
func (p *Publisher) Publish(ctx context.Context, ev MemoryEvent) error {
	subject := subjectFor(memory.EventType(ev.EventType))
	if subject == "" {
		return fmt.Errorf("unknown event type %q", ev.EventType)
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Hook returns a reflexive hook that forwards every memory lifecycle
// event to NATS. Register it with options subscribing to all event
// types; publish failures surface as hook errors, which the dispatcher
// logs without disturbing the triggering operation.
func (p *Publisher) Hook() memory.HookFunc {
	return func(ctx context.Context, ev memory.Event) error {
		return p.Publish(ctx, FromReflexive(ev))
	}
}

// HookOptions returns the registration options for the NATS bridge:
// every event type, all kinds and agents, low priority so
// application hooks observe events first.
func HookOptions() memory.HookOptions {
	return memory.HookOptions{
		Events: []memory.EventType{
			memory.EventStore,
			memory.EventQuery,
			memory.EventDelete,
			memory.EventConsolidate,
		},
		Priority: -100,
	}
}
