package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory provider for manager tests.
type fakeStore struct {
	name  string
	kinds map[Kind]bool

	mu      sync.Mutex
	entries map[string]Entry
	deletes []string
	swept   bool
}

func newFakeStore(name string, kinds ...Kind) *fakeStore {
	ks := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		ks[k] = true
	}
	return &fakeStore{name: name, kinds: ks, entries: make(map[string]Entry)}
}

func (f *fakeStore) Name() string             { return f.name }
func (f *fakeStore) SupportsKind(k Kind) bool { return f.kinds[k] }

func (f *fakeStore) Store(_ context.Context, e *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = *e
	return nil
}

func (f *fakeStore) Query(_ context.Context, q Query) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if q.Matches(&e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) Sweep(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = true
	return nil
}

// fakeSearcher returns canned scored results.
type fakeSearcher struct {
	*fakeStore
	results []ScoredEntry
	err     error
}

func (f *fakeSearcher) SemanticSearch(_ context.Context, _ Query) ([]ScoredEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestManager_StoreAppliesDefaults(t *testing.T) {
	store := newFakeStore("st", KindShortTerm)
	m := NewManager([]Provider{store}, WithDefaultAgentID("agent-1"))

	id, err := m.Store(context.Background(), &Entry{Kind: KindShortTerm, Content: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got := store.entries[id]
	assert.Equal(t, ScopeAgent, got.Scope)
	assert.Equal(t, VisibilityPrivate, got.Visibility)
	assert.Equal(t, "agent-1", got.OwnerAgentID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestManager_StoreValidation(t *testing.T) {
	m := NewManager([]Provider{newFakeStore("st", KindShortTerm)})
	ctx := context.Background()

	var verr *ValidationError

	_, err := m.Store(ctx, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = m.Store(ctx, &Entry{Kind: KindShortTerm})
	assert.ErrorAs(t, err, &verr)

	_, err = m.Store(ctx, &Entry{Kind: "episodic", Content: "x"})
	assert.ErrorAs(t, err, &verr)

	created := time.Now()
	expired := created.Add(-time.Hour)
	_, err = m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "x", CreatedAt: created, ExpiresAt: &expired})
	assert.ErrorAs(t, err, &verr)
}

func TestManager_StoreNoProvider(t *testing.T) {
	m := NewManager([]Provider{newFakeStore("st", KindShortTerm)})

	_, err := m.Store(context.Background(), &Entry{Kind: KindLongTerm, Content: "x"})
	require.Error(t, err)
	var nperr *NoProviderError
	require.ErrorAs(t, err, &nperr)
	assert.Equal(t, KindLongTerm, nperr.Kind)
}

func TestManager_StoreRoutesToFirstSupportingProvider(t *testing.T) {
	first := newFakeStore("first", KindLongTerm)
	second := newFakeStore("second", KindLongTerm)
	m := NewManager([]Provider{first, second})

	id, err := m.Store(context.Background(), &Entry{Kind: KindLongTerm, Content: "x"})
	require.NoError(t, err)

	assert.Contains(t, first.entries, id)
	assert.NotContains(t, second.entries, id)
}

func TestManager_QueryOrdersNewestFirst(t *testing.T) {
	store := newFakeStore("st", KindShortTerm)
	m := NewManager([]Provider{store})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := m.Store(ctx, &Entry{
			Kind:      KindShortTerm,
			Content:   "entry",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := m.Query(ctx, Query{Kind: KindShortTerm})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
		return got[i].CreatedAt.After(got[j].CreatedAt)
	}))
}

func TestManager_QueryMergesProvidersAndTruncates(t *testing.T) {
	st := newFakeStore("st", KindShortTerm)
	lt := newFakeStore("lt", KindLongTerm)
	m := NewManager([]Provider{st, lt})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "s", Tags: []string{"shared"}})
		require.NoError(t, err)
		_, err = m.Store(ctx, &Entry{Kind: KindLongTerm, Content: "l", Tags: []string{"shared"}})
		require.NoError(t, err)
	}

	got, err := m.Query(ctx, Query{Tags: []string{"shared"}})
	require.NoError(t, err)
	assert.Len(t, got, 8)

	got, err = m.Query(ctx, Query{Tags: []string{"shared"}, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestManager_QueryKindHintNarrowsProviders(t *testing.T) {
	st := newFakeStore("st", KindShortTerm)
	lt := newFakeStore("lt", KindLongTerm)
	m := NewManager([]Provider{st, lt})
	ctx := context.Background()

	_, err := m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "s"})
	require.NoError(t, err)
	_, err = m.Store(ctx, &Entry{Kind: KindLongTerm, Content: "l"})
	require.NoError(t, err)

	got, err := m.Query(ctx, Query{}, KindLongTerm)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, KindLongTerm, got[0].Kind)
}

func TestManager_SemanticScoredPrecedeUnscored(t *testing.T) {
	searcher := &fakeSearcher{
		fakeStore: newFakeStore("vec", KindSemantic),
		results: []ScoredEntry{
			{Entry: Entry{ID: "low", Kind: KindSemantic, Content: "x"}, Similarity: 0.71},
			{Entry: Entry{ID: "high", Kind: KindSemantic, Content: "x"}, Similarity: 0.95},
		},
	}
	plain := newFakeStore("lt", KindLongTerm)
	m := NewManager([]Provider{searcher, plain})
	ctx := context.Background()

	_, err := m.Store(ctx, &Entry{ID: "unscored", Kind: KindLongTerm, Content: "x"})
	require.NoError(t, err)

	got, err := m.SemanticSearch(ctx, Query{SimilarityTo: "x"}, KindSemantic, KindLongTerm)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "low", got[1].ID)
	assert.Equal(t, "unscored", got[2].ID)
}

func TestManager_SemanticFallsBackWithoutSearcher(t *testing.T) {
	store := newFakeStore("st", KindShortTerm)
	m := NewManager([]Provider{store})
	ctx := context.Background()

	id, err := m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "plain entry"})
	require.NoError(t, err)

	got, err := m.Query(ctx, Query{Kind: KindShortTerm, SimilarityTo: "anything"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
}

func TestManager_SemanticSearchError(t *testing.T) {
	searcher := &fakeSearcher{
		fakeStore: newFakeStore("vec", KindSemantic),
		err:       errors.New("index unavailable"),
	}
	m := NewManager([]Provider{searcher})

	_, err := m.SemanticSearch(context.Background(), Query{SimilarityTo: "x"}, KindSemantic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
}

func TestManager_DeleteBroadcastsToAllProviders(t *testing.T) {
	st := newFakeStore("st", KindShortTerm)
	lt := newFakeStore("lt", KindLongTerm)
	m := NewManager([]Provider{st, lt})
	ctx := context.Background()

	id, err := m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "x"})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))
	assert.Contains(t, st.deletes, id)
	assert.Contains(t, lt.deletes, id)

	// Deleting an unknown id is not an error.
	require.NoError(t, m.Delete(ctx, "never-stored"))
}

func TestManager_ConsolidateSweepsMaintainers(t *testing.T) {
	st := newFakeStore("st", KindShortTerm)
	m := NewManager([]Provider{st})

	require.NoError(t, m.Consolidate(context.Background()))
	assert.True(t, st.swept)
}

func TestManager_EventsFire(t *testing.T) {
	store := newFakeStore("st", KindShortTerm)
	m := NewManager([]Provider{store})
	ctx := context.Background()

	var events []Event
	_, err := m.RegisterHook(HookOptions{
		Events: []EventType{EventStore, EventQuery, EventDelete, EventConsolidate},
	}, func(_ context.Context, ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	id, err := m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "x"})
	require.NoError(t, err)
	_, err = m.Query(ctx, Query{Kind: KindShortTerm})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, id))
	require.NoError(t, m.Consolidate(ctx))

	require.Len(t, events, 4)
	assert.Equal(t, EventStore, events[0].Type)
	assert.Equal(t, id, events[0].Entry.ID)
	assert.Equal(t, EventQuery, events[1].Type)
	assert.Equal(t, EventDelete, events[2].Type)
	assert.Equal(t, id, events[2].EntryID)
	assert.Equal(t, EventConsolidate, events[3].Type)
}

func TestManager_StoreFailureSuppressesEvent(t *testing.T) {
	m := NewManager([]Provider{newFakeStore("st", KindShortTerm)})

	var fired int
	_, err := m.RegisterHook(HookOptions{Events: []EventType{EventStore}}, func(context.Context, Event) error {
		fired++
		return nil
	})
	require.NoError(t, err)

	_, err = m.Store(context.Background(), &Entry{Kind: KindLongTerm, Content: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, fired)
}

func TestManager_HooksDisabled(t *testing.T) {
	m := NewManager([]Provider{newFakeStore("st", KindShortTerm)}, WithoutHooks())

	_, err := m.RegisterHook(HookOptions{Events: []EventType{EventStore}}, func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, ErrHooksDisabled)
	assert.False(t, m.UnregisterHook("whatever"))

	// Operations still work without a dispatcher.
	_, err = m.Store(context.Background(), &Entry{Kind: KindShortTerm, Content: "x"})
	require.NoError(t, err)
}

func TestManager_UnregisterStopsFiring(t *testing.T) {
	m := NewManager([]Provider{newFakeStore("st", KindShortTerm)})
	ctx := context.Background()

	var fired int
	id, err := m.RegisterHook(HookOptions{Events: []EventType{EventStore}}, func(context.Context, Event) error {
		fired++
		return nil
	})
	require.NoError(t, err)

	_, err = m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "one"})
	require.NoError(t, err)
	require.True(t, m.UnregisterHook(id))

	_, err = m.Store(ctx, &Entry{Kind: KindShortTerm, Content: "two"})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}
