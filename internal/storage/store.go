package storage

import (
	"github.com/google/btree"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
)

const defaultDegree = 32

// Entry is a stored value together with the write that produced it.
type Entry struct {
	Key     string
	Value   string
	Origin  string            // node that accepted the write from a client
	Version clock.VectorClock // clock snapshot carried by the write
}

// Store defines the interface for key-value storage.
// Implementations are not required to be safe for concurrent use; the causal
// engine serializes every call under its own lock.
type Store interface {
	// Get retrieves the entry for key. The second result is false if absent.
	Get(key string) (Entry, bool)
	// Put stores value under key, replacing any previous value.
	Put(key, value, origin string, version clock.VectorClock)
	// Len returns the number of keys.
	Len() int
	// Ascend calls fn for every entry in key order until fn returns false.
	Ascend(fn func(Entry) bool)
}

// InMemoryStore is a btree-backed implementation of Store.
type InMemoryStore struct {
	tree *btree.BTreeG[Entry]
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tree: btree.NewG(defaultDegree, func(a, b Entry) bool { return a.Key < b.Key }),
	}
}

// Get retrieves a value by key.
func (s *InMemoryStore) Get(key string) (Entry, bool) {
	e, ok := s.tree.Get(Entry{Key: key})
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Put stores a value with the version of the write that produced it.
func (s *InMemoryStore) Put(key, value, origin string, version clock.VectorClock) {
	s.tree.ReplaceOrInsert(Entry{
		Key:     key,
		Value:   value,
		Origin:  origin,
		Version: version.Copy(),
	})
}

// Len returns the number of stored keys.
func (s *InMemoryStore) Len() int {
	return s.tree.Len()
}

// Ascend iterates entries in key order.
func (s *InMemoryStore) Ascend(fn func(Entry) bool) {
	s.tree.Ascend(func(e Entry) bool {
		return fn(copyEntry(e))
	})
}

// Snapshot returns a key to value copy of the whole store.
func Snapshot(s Store) map[string]string {
	out := make(map[string]string, s.Len())
	s.Ascend(func(e Entry) bool {
		out[e.Key] = e.Value
		return true
	})
	return out
}

// copyEntry returns e with its own copy of the version.
func copyEntry(e Entry) Entry {
	e.Version = e.Version.Copy()
	return e
}
