package ephemeral

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noema-platform/noema/internal/memory"
)

func TestStore_DefaultsToShortTerm(t *testing.T) {
	s := New()
	assert.True(t, s.SupportsKind(memory.KindShortTerm))
	assert.False(t, s.SupportsKind(memory.KindLongTerm))

	s = New(memory.KindLongTerm, memory.KindProcedural)
	assert.True(t, s.SupportsKind(memory.KindLongTerm))
	assert.True(t, s.SupportsKind(memory.KindProcedural))
	assert.False(t, s.SupportsKind(memory.KindShortTerm))
}

func TestStore_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Store(ctx, &memory.Entry{
		ID:        "e1",
		Kind:      memory.KindShortTerm,
		Content:   "remember this",
		Tags:      []string{"task"},
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	got, err := s.Query(ctx, memory.Query{Tags: []string{"task"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "remember this", got[0].Content)

	got, err = s.Query(ctx, memory.Query{Tags: []string{"other"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_RejectsUnsupportedKind(t *testing.T) {
	s := New()

	err := s.Store(context.Background(), &memory.Entry{
		ID:      "e1",
		Kind:    memory.KindLongTerm,
		Content: "x",
	})
	require.Error(t, err)
	var verr *memory.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStore_ExpiredEntriesInvisible(t *testing.T) {
	s := New()
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "gone", Kind: memory.KindShortTerm, Content: "x", ExpiresAt: &past,
	}))
	future := time.Now().Add(time.Hour)
	require.NoError(t, s.Store(ctx, &memory.Entry{
		ID: "live", Kind: memory.KindShortTerm, Content: "x", ExpiresAt: &future,
	}))

	got, err := s.Query(ctx, memory.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)

	// Expired entry is still held until swept.
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Sweep(ctx))
	assert.Equal(t, 1, s.Len())
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, &memory.Entry{ID: "e1", Kind: memory.KindShortTerm, Content: "x"}))
	require.NoError(t, s.Delete(ctx, "e1"))
	require.NoError(t, s.Delete(ctx, "e1"))
	require.NoError(t, s.Delete(ctx, "never-existed"))
	assert.Equal(t, 0, s.Len())
}
