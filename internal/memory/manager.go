package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noema-platform/noema/internal/metrics"
)

const defaultMaxResults = 50

// Manager is the façade over all registered providers. It routes
// store/query/delete/consolidate calls by declared kind support,
// merges multi-provider results, and drives the reflexive dispatcher.
//
// Provider resolution is declarative: a provider is eligible for a
// kind iff SupportsKind returns true. The manager never probes a
// provider beyond that check, keeping routing stateless and
// O(providers).
type Manager struct {
	providers      []Provider
	dispatcher     *Dispatcher
	validate       *validator.Validate
	defaultAgentID string
	maxResults     int
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefaultAgentID sets the owner assigned to agent-scoped entries
// stored without one.
func WithDefaultAgentID(id string) Option {
	return func(m *Manager) { m.defaultAgentID = id }
}

// WithoutHooks disables the reflexive layer. RegisterHook then fails
// with ErrHooksDisabled and no events are fired.
func WithoutHooks() Option {
	return func(m *Manager) { m.dispatcher = nil }
}

// WithMaxResults sets the default result cutoff for queries that do
// not carry their own MaxResults.
func WithMaxResults(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxResults = n
		}
	}
}

// NewManager creates a manager over the given providers. Provider
// order matters for store routing: the first provider supporting the
// entry's kind wins.
func NewManager(providers []Provider, opts ...Option) *Manager {
	m := &Manager{
		providers:  providers,
		dispatcher: NewDispatcher(),
		validate:   validator.New(),
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store fills in defaults, validates the entry, routes it to the
// first provider supporting its kind and fires the store event.
// Returns the entry id.
func (m *Manager) Store(ctx context.Context, e *Entry) (string, error) {
	if e == nil {
		return "", newValidationError("entry is nil")
	}

	if e.Scope == "" {
		e.Scope = ScopeAgent
	}
	if e.Visibility == "" {
		e.Visibility = VisibilityPrivate
	}
	if e.Scope == ScopeAgent && e.OwnerAgentID == "" {
		e.OwnerAgentID = m.defaultAgentID
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if err := m.validateEntry(e); err != nil {
		return "", err
	}

	p := m.providerFor(e.Kind)
	if p == nil {
		return "", &NoProviderError{Kind: e.Kind}
	}

	if err := p.Store(ctx, e); err != nil {
		return "", fmt.Errorf("storing entry in %s: %w", p.Name(), err)
	}

	metrics.EntriesStoredTotal.WithLabelValues(string(e.Kind)).Inc()
	m.fire(ctx, Event{
		Type:    EventStore,
		Entry:   e,
		Kind:    e.Kind,
		AgentID: e.OwnerAgentID,
	})
	return e.ID, nil
}

func (m *Manager) validateEntry(e *Entry) error {
	if !e.Kind.Valid() {
		return newValidationError("unknown kind %q", e.Kind)
	}
	if !e.Scope.Valid() {
		return newValidationError("unknown scope %q", e.Scope)
	}
	if !e.Visibility.Valid() {
		return newValidationError("unknown visibility %q", e.Visibility)
	}
	if e.ExpiresAt != nil && e.ExpiresAt.Before(e.CreatedAt) {
		return newValidationError("expires_at precedes created_at")
	}
	if err := m.validate.Struct(e); err != nil {
		return newValidationError("%v", err)
	}
	return nil
}

// Query runs the query against the matching provider subset in
// parallel, flattens the results, orders them newest first and cuts
// to the result limit. Queries carrying a similarity request are
// delegated to SemanticSearch.
func (m *Manager) Query(ctx context.Context, q Query, kindsHint ...Kind) ([]Entry, error) {
	if q.Semantic() {
		return m.SemanticSearch(ctx, q, kindsHint...)
	}

	selected := m.selectProviders(kindsHint, q.Kind)
	entries, err := m.fanOutQuery(ctx, selected, q)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	entries = m.truncate(entries, q.MaxResults)

	metrics.QueriesTotal.WithLabelValues("exact").Inc()
	m.fire(ctx, Event{
		Type:    EventQuery,
		Entries: entries,
		Query:   &q,
		Kind:    q.Kind,
		AgentID: q.OwnerAgentID,
	})
	return entries, nil
}

// SemanticSearch prefers providers implementing SemanticSearcher;
// non-vector providers in the selection contribute unscored results
// via their plain Query. Scored entries order by descending
// similarity and precede all unscored entries, which order newest
// first among themselves. When no vector-capable provider is
// selected the whole call degrades to a plain filtered query.
func (m *Manager) SemanticSearch(ctx context.Context, q Query, kindsHint ...Kind) ([]Entry, error) {
	selected := m.selectProviders(kindsHint, q.Kind)

	var searchers []SemanticSearcher
	var plain []Provider
	for _, p := range selected {
		if s, ok := p.(SemanticSearcher); ok {
			searchers = append(searchers, s)
		} else {
			plain = append(plain, p)
		}
	}

	if len(searchers) == 0 {
		entries, err := m.fanOutQuery(ctx, selected, q)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		})
		entries = m.truncate(entries, q.MaxResults)

		metrics.QueriesTotal.WithLabelValues("semantic").Inc()
		metrics.SemanticResultSize.Observe(float64(len(entries)))
		m.fire(ctx, Event{
			Type:    EventQuery,
			Entries: entries,
			Query:   &q,
			Kind:    q.Kind,
			AgentID: q.OwnerAgentID,
		})
		return entries, nil
	}

	scored := make([][]ScoredEntry, len(searchers))
	unscored := make([][]Entry, len(plain))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range searchers {
		i, s := i, s
		g.Go(func() error {
			res, err := s.SemanticSearch(gctx, q)
			if err != nil {
				return fmt.Errorf("semantic search in %s: %w", s.Name(), err)
			}
			scored[i] = res
			return nil
		})
	}
	for i, p := range plain {
		i, p := i, p
		g.Go(func() error {
			res, err := p.Query(gctx, q)
			if err != nil {
				return fmt.Errorf("querying %s: %w", p.Name(), err)
			}
			unscored[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ranked []ScoredEntry
	for _, rs := range scored {
		ranked = append(ranked, rs...)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	var rest []Entry
	for _, us := range unscored {
		rest = append(rest, us...)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].CreatedAt.After(rest[j].CreatedAt)
	})

	entries := make([]Entry, 0, len(ranked)+len(rest))
	for _, r := range ranked {
		entries = append(entries, r.Entry)
	}
	entries = append(entries, rest...)
	entries = m.truncate(entries, q.MaxResults)

	metrics.QueriesTotal.WithLabelValues("semantic").Inc()
	metrics.SemanticResultSize.Observe(float64(len(entries)))
	m.fire(ctx, Event{
		Type:    EventQuery,
		Entries: entries,
		Query:   &q,
		Kind:    q.Kind,
		AgentID: q.OwnerAgentID,
	})
	return entries, nil
}

// Delete broadcasts the delete to every provider. The owning provider
// is not tracked centrally, so correctness wins over efficiency.
// The delete event fires whether or not any provider held the id,
// matching the idempotent delete contract.
func (m *Manager) Delete(ctx context.Context, id string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range m.providers {
		p := p
		g.Go(func() error {
			if err := p.Delete(gctx, id); err != nil {
				return fmt.Errorf("deleting %s from %s: %w", id, p.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.DeletesTotal.Inc()
	m.fire(ctx, Event{Type: EventDelete, EntryID: id})
	return nil
}

// Consolidate runs provider-local maintenance on every provider that
// has any, then fires the consolidate event. This is distinct from
// the multi-entry summarization pipeline in the consolidate package,
// which fires the same event independently.
func (m *Manager) Consolidate(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		maint, ok := p.(Maintainer)
		if !ok {
			continue
		}
		if err := maint.Sweep(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sweeping %s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.fire(ctx, Event{Type: EventConsolidate})
	return nil
}

// EmitConsolidateEvent fires the consolidate event on behalf of the
// batch consolidation pipeline. Provider-local maintenance and the
// pipeline are distinct operations sharing one event name; each fires
// it independently.
func (m *Manager) EmitConsolidateEvent(ctx context.Context) {
	m.fire(ctx, Event{Type: EventConsolidate})
}

// RegisterHook registers a reflexive hook; fails with ErrHooksDisabled
// when the manager was built without hooks.
func (m *Manager) RegisterHook(opts HookOptions, fn HookFunc) (string, error) {
	if m.dispatcher == nil {
		return "", ErrHooksDisabled
	}
	return m.dispatcher.Register(opts, fn)
}

// UnregisterHook removes a hook by id.
func (m *Manager) UnregisterHook(id string) bool {
	if m.dispatcher == nil {
		return false
	}
	return m.dispatcher.Unregister(id)
}

func (m *Manager) fire(ctx context.Context, ev Event) {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Trigger(ctx, ev)
}

func (m *Manager) providerFor(k Kind) Provider {
	for _, p := range m.providers {
		if p.SupportsKind(k) {
			return p
		}
	}
	return nil
}

// selectProviders returns the provider subset matching the kinds hint,
// or the query kind when no hint is given, or all providers when
// neither constrains the selection.
func (m *Manager) selectProviders(hint []Kind, k Kind) []Provider {
	if len(hint) == 0 {
		if k == "" {
			return m.providers
		}
		hint = []Kind{k}
	}

	var selected []Provider
	for _, p := range m.providers {
		for _, h := range hint {
			if p.SupportsKind(h) {
				selected = append(selected, p)
				break
			}
		}
	}
	return selected
}

func (m *Manager) fanOutQuery(ctx context.Context, providers []Provider, q Query) ([]Entry, error) {
	results := make([][]Entry, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			res, err := p.Query(gctx, q)
			if err != nil {
				return fmt.Errorf("querying %s: %w", p.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []Entry
	for _, r := range results {
		entries = append(entries, r...)
	}
	return entries, nil
}

func (m *Manager) truncate(entries []Entry, max int) []Entry {
	if max <= 0 {
		max = m.maxResults
	}
	if len(entries) > max {
		entries = entries[:max]
	}
	return entries
}
