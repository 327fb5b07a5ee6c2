// Package cache keeps built program graphs on disk, keyed by a hash of the
// sources and settings they were built from. Entries are msgpack encoded.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-trace-query/pkg/graphfile"
)

// ErrMiss is returned by Get when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// formatVersion is bumped whenever the entry layout or the lowering changes
// in a way that invalidates stored graphs.
const formatVersion = 1

const entryExt = ".msgpack"

// entry is the on-disk record.
type entry struct {
	Version   int                 `msgpack:"version"`
	Key       string              `msgpack:"key"`
	CreatedAt int64               `msgpack:"created_at"`
	Doc       *graphfile.Document `msgpack:"doc"`
}

// Store is a directory of cached graph documents.
type Store struct {
	Dir string
}

// New returns a store rooted at dir. The directory is created on first Put.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Key hashes parts into a cache key. Each part is length prefixed, so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key+entryExt)
}

// Get loads the document stored under key. Entries written by another
// format version count as misses.
func (s *Store) Get(key string) (*graphfile.Document, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	if e.Version != formatVersion || e.Key != key || e.Doc == nil {
		return nil, ErrMiss
	}

	now := time.Now()
	_ = os.Chtimes(s.path(key), now, now)
	return e.Doc, nil
}

// Put stores doc under key, replacing any previous entry atomically.
func (s *Store) Put(key string, doc *graphfile.Document) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", s.Dir, err)
	}

	data, err := msgpack.Marshal(&entry{
		Version:   formatVersion,
		Key:       key,
		CreatedAt: time.Now().Unix(),
		Doc:       doc,
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key if present.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

type stored struct {
	path    string
	modTime time.Time
}

func (s *Store) entries() ([]stored, error) {
	dirEntries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}

	var out []stored
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, stored{path: filepath.Join(s.Dir, de.Name()), modTime: info.ModTime()})
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() (int, error) {
	es, err := s.entries()
	return len(es), err
}

// Prune keeps the maxEntries most recently used entries and removes the
// rest. It returns the number of entries removed.
func (s *Store) Prune(maxEntries int) (int, error) {
	if maxEntries < 0 {
		maxEntries = 0
	}
	es, err := s.entries()
	if err != nil {
		return 0, err
	}
	if len(es) <= maxEntries {
		return 0, nil
	}

	sort.Slice(es, func(i, j int) bool {
		return es[i].modTime.After(es[j].modTime)
	})
	removed := 0
	for _, e := range es[maxEntries:] {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("pruning cache: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	_, err := s.Prune(0)
	return err
}
