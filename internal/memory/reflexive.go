package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noema-platform/noema/internal/metrics"
)

// EventType identifies a memory lifecycle event.
type EventType string

const (
	EventStore       EventType = "store"
	EventQuery       EventType = "query"
	EventDelete      EventType = "delete"
	EventConsolidate EventType = "consolidate"
)

// Event is the context handed to reflexive hooks when the manager
// performs an operation. Fields are populated per event type: Entry on
// store, Entries and Query on query, EntryID on delete.
type Event struct {
	Type      EventType `json:"type"`
	Entry     *Entry    `json:"entry,omitempty"`
	Entries   []Entry   `json:"entries,omitempty"`
	Query     *Query    `json:"query,omitempty"`
	EntryID   string    `json:"entry_id,omitempty"`
	Kind      Kind      `json:"kind,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HookFunc is a reflexive observer callback. A non-nil error is logged
// by the dispatcher and never propagated to the triggering operation.
type HookFunc func(ctx context.Context, ev Event) error

// HookOptions filters and orders a hook registration.
type HookOptions struct {
	// Events the hook fires on. Required.
	Events []EventType
	// Kinds restricts firing to events about these memory kinds.
	// Empty means all kinds.
	Kinds []Kind
	// AgentID restricts firing to events about one agent. Empty means all.
	AgentID string
	// Priority orders execution: higher runs first. Ties run in
	// registration order.
	Priority int
}

type registeredHook struct {
	id   string
	seq  uint64
	opts HookOptions
	fn   HookFunc
}

func (h *registeredHook) matches(ev Event) bool {
	typeOK := false
	for _, t := range h.opts.Events {
		if t == ev.Type {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	if len(h.opts.Kinds) > 0 {
		kindOK := false
		for _, k := range h.opts.Kinds {
			if k == ev.Kind {
				kindOK = true
				break
			}
		}
		if !kindOK {
			return false
		}
	}
	if h.opts.AgentID != "" && h.opts.AgentID != ev.AgentID {
		return false
	}
	return true
}

// Dispatcher owns the reflexive hook registry and fans events out to
// matching hooks. Hooks run sequentially in descending priority order
// within one Trigger call, so a higher-priority hook's side effects
// are visible to lower-priority hooks of the same event. A hook that
// fails or panics is logged and skipped; siblings still run.
type Dispatcher struct {
	mu    sync.RWMutex
	hooks map[string]*registeredHook
	seq   uint64
}

// NewDispatcher creates an empty hook registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{hooks: make(map[string]*registeredHook)}
}

// Register adds a hook and returns its registration id, the key for
// Unregister.
func (d *Dispatcher) Register(opts HookOptions, fn HookFunc) (string, error) {
	if fn == nil {
		return "", newValidationError("hook callback is nil")
	}
	if len(opts.Events) == 0 {
		return "", newValidationError("hook must subscribe to at least one event type")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	h := &registeredHook{
		id:   uuid.NewString(),
		seq:  d.seq,
		opts: opts,
		fn:   fn,
	}
	d.hooks[h.id] = h
	return h.id, nil
}

// Unregister removes a hook by id. Returns false if the id is unknown.
func (d *Dispatcher) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.hooks[id]; !ok {
		return false
	}
	delete(d.hooks, id)
	return true
}

// Count returns the number of registered hooks.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks)
}

// Trigger runs all hooks matching ev, blocking until each has finished
// or failed. The triggering operation has already completed its primary
// effect, so hook errors are observational only.
func (d *Dispatcher) Trigger(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	d.mu.RLock()
	matched := make([]*registeredHook, 0, len(d.hooks))
	for _, h := range d.hooks {
		if h.matches(ev) {
			matched = append(matched, h)
		}
	}
	d.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].opts.Priority != matched[j].opts.Priority {
			return matched[i].opts.Priority > matched[j].opts.Priority
		}
		return matched[i].seq < matched[j].seq
	})

	for _, h := range matched {
		d.run(ctx, h, ev)
	}
}

func (d *Dispatcher) run(ctx context.Context, h *registeredHook, ev Event) {
	metrics.HookFiringsTotal.WithLabelValues(string(ev.Type)).Inc()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("hook panicked: %v", r)
			}
		}()
		return h.fn(ctx, ev)
	}()

	if err != nil {
		metrics.HookErrorsTotal.WithLabelValues(string(ev.Type)).Inc()
		slog.Error("reflexive hook failed",
			"hook_id", h.id,
			"event", ev.Type,
			"error", err)
	}
}
