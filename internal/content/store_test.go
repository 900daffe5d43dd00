package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestStore_RoundTrip tests store, lookup, and the content-addressed id.
func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := []byte("El original es infiel a la traducción.")

	id, err := s.StoreText(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, canon.ContentID(text), id)

	got, err := s.GetText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, text, got)

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestStore_Idempotent tests that re-storing identical text yields the
// same id.
func TestStore_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := []byte("same words, same hrönir")

	first, err := s.StoreText(ctx, text)
	require.NoError(t, err)
	second, err := s.StoreText(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestStore_Unknown tests nil-for-unknown semantics.
func TestStore_Unknown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetText(ctx, "never-stored")
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := s.Exists(ctx, "never-stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_EmptyText tests the empty-blob rejection.
func TestStore_EmptyText(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StoreText(context.Background(), nil)
	assert.Error(t, err)
}

// TestStore_DistinctTexts tests that different texts get different ids.
func TestStore_DistinctTexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.StoreText(ctx, []byte("first draft"))
	require.NoError(t, err)
	b, err := s.StoreText(ctx, []byte("second draft"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

// TestStore_CancelledContext tests the ctx guard on every entry point.
func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.StoreText(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.GetText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Exists(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
