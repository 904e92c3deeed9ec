package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	ctx := t.Context()

	require.NoError(t, s.Put(ctx, "run/pli-01", []byte("one")))
	require.NoError(t, s.Put(ctx, "run/pli-02", []byte("two")))
	require.NoError(t, s.Put(ctx, "other/pli-03", []byte("three")))

	data, err := s.Get(ctx, "run/pli-01")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// overwrite
	require.NoError(t, s.Put(ctx, "run/pli-01", []byte("uno")))
	data, err = s.Get(ctx, "run/pli-01")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), data)

	names, err := s.List(ctx, "run/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run/pli-01", "run/pli-02"}, names)

	require.NoError(t, s.Delete(ctx, "run/pli-01"))
	require.NoError(t, s.Delete(ctx, "run/pli-01"))
	_, err = s.Get(ctx, "run/pli-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Put(t.Context(), "x", data))
	data[0] = 'z'

	got, err := s.Get(t.Context(), "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestLocalStore(t *testing.T) {
	testStore(t, NewLocalStore(t.TempDir()))
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	s := NewLocalStore(t.TempDir() + "/missing")
	names, err := s.List(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_Accounting(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a", []byte("12345")))
	require.NoError(t, s.Put(ctx, "b", []byte("123")))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, int64(8), s.Bytes())

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	assert.Equal(t, int64(4), s.Bytes())

	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Delete(ctx, "missing"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(1), s.Bytes())
}
