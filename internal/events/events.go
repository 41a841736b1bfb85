// Package events publishes memory lifecycle events to NATS JetStream
// and bridges them into the reflexive hook layer.
package events

import (
	"time"

	"github.com/noema-platform/noema/internal/memory"
)

// Stream name.
const StreamMemory = "NOEMA_MEMORY"

// Subject constants, one per lifecycle event.
const (
	SubjectStored       = "noema.memory.stored"
	SubjectQueried      = "noema.memory.queried"
	SubjectDeleted      = "noema.memory.deleted"
	SubjectConsolidated = "noema.memory.consolidated"
)

// MemoryEvent is the wire form of a memory lifecycle event.
type MemoryEvent struct {
	EventType   string      `json:"event_type"`
	EntryID     string      `json:"entry_id,omitempty"`
	Kind        memory.Kind `json:"kind,omitempty"`
	AgentID     string      `json:"agent_id,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	ResultCount int         `json:"result_count,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// subjectFor maps a reflexive event type to its NATS subject.
func subjectFor(t memory.EventType) string {
	switch t {
	case memory.EventStore:
		return SubjectStored
	case memory.EventQuery:
		return SubjectQueried
	case memory.EventDelete:
		return SubjectDeleted
	case memory.EventConsolidate:
		return SubjectConsolidated
	}
	return ""
}

// FromReflexive converts a reflexive event into its wire form.
func FromReflexive(ev memory.Event) MemoryEvent {
	out := MemoryEvent{
		EventType:   string(ev.Type),
		Kind:        ev.Kind,
		AgentID:     ev.AgentID,
		EntryID:     ev.EntryID,
		ResultCount: len(ev.Entries),
		Timestamp:   ev.Timestamp,
	}
	if ev.Entry != nil {
		out.EntryID = ev.Entry.ID
		out.Tags = ev.Entry.Tags
	}
	return out
}
