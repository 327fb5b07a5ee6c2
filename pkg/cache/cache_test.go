package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-trace-query/pkg/graphfile"
)

func sampleDoc() *graphfile.Document {
	call := 2
	return &graphfile.Document{
		Vertices: []graphfile.VertexDoc{
			{ID: 0, Name: "main", Succs: []int{1}},
			{ID: 1, Succs: []int{1}, Call: &call},
			{ID: 2, Name: "f"},
		},
		Labels:       map[string]int{"main_entry": 0},
		BoundedLoops: [][]int{{1}},
	}
}

func TestKey(t *testing.T) {
	k := Key([]byte("ab"), []byte("c"))
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key([]byte("ab"), []byte("c")))
	assert.NotEqual(t, k, Key([]byte("a"), []byte("bc")))
	assert.NotEqual(t, k, Key([]byte("abc")))
}

func TestStore_PutGet(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "cache"))
	key := Key([]byte("main.c"), []byte("int main() {}"))

	_, err := s.Get(key)
	assert.True(t, errors.Is(err, ErrMiss))

	doc := sampleDoc()
	require.NoError(t, s.Put(key, doc))

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(key))
	_, err = s.Get(key)
	assert.True(t, errors.Is(err, ErrMiss))
	assert.NoError(t, s.Delete(key))
}

func TestStore_StaleVersionIsMiss(t *testing.T) {
	s := New(t.TempDir())
	key := Key([]byte("x"))

	data, err := msgpack.Marshal(&entry{Version: formatVersion + 1, Key: key, Doc: sampleDoc()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path(key), data, 0644))

	_, err = s.Get(key)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestStore_CorruptEntry(t *testing.T) {
	s := New(t.TempDir())
	key := Key([]byte("x"))
	require.NoError(t, os.WriteFile(s.path(key), []byte{0xc1}, 0644))

	_, err := s.Get(key)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
}

func TestStore_Prune(t *testing.T) {
	s := New(t.TempDir())
	keys := []string{Key([]byte("a")), Key([]byte("b")), Key([]byte("c"))}
	base := time.Now().Add(-time.Hour)
	for i, k := range keys {
		require.NoError(t, s.Put(k, sampleDoc()))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(s.path(k), mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "notes.txt"), []byte("keep"), 0644))

	removed, err := s.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Get(keys[0])
	assert.True(t, errors.Is(err, ErrMiss), "oldest entry should be pruned")
	_, err = s.Get(keys[2])
	assert.NoError(t, err)
	assert.FileExists(t, filepath.Join(s.Dir, "notes.txt"))

	require.NoError(t, s.Clear())
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_MissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never"))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	removed, err := s.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
