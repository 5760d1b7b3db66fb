package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrSnapshotNotFound is returned by a store that has never saved the
// requested snapshot
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot names
const (
	SnapshotCatalog   = "catalog"
	SnapshotOrders    = "orders"
	SnapshotInventory = "inventory"
	SnapshotDisputes  = "disputes"
)

// SnapshotStore persists whole-collection documents. Save replaces the
// previous document atomically.
type SnapshotStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// collection keeps one entity collection in memory behind a single lock
// and writes it back to the store as a whole document.
type collection[T any] struct {
	name  string
	store SnapshotStore

	mu    sync.RWMutex
	state T
	dirty bool

	// serializes writes so an older document never overwrites a newer one
	saveMu sync.Mutex
}

func newCollection[T any](name string, store SnapshotStore, initial T) *collection[T] {
	return &collection[T]{name: name, store: store, state: initial}
}

func (c *collection[T]) load(ctx context.Context) error {
	data, err := c.store.Load(ctx, c.name)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s snapshot: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.Unmarshal(data, &c.state); err != nil {
		return fmt.Errorf("failed to decode %s snapshot: %w", c.name, err)
	}
	return nil
}

func (c *collection[T]) read(fn func(*T)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(&c.state)
}

// mutate applies fn under the exclusive lock. The collection is marked
// dirty unless fn returns an error.
func (c *collection[T]) mutate(fn func(*T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(&c.state); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

// apply runs fn under the exclusive lock and marks the collection dirty
func (c *collection[T]) apply(fn func(*T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.dirty = true
}

// flush writes the collection if it changed since the last write
func (c *collection[T]) flush(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(&c.state, "", "  ")
	if err == nil {
		c.dirty = false
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", c.name, err)
	}

	if err := c.store.Save(ctx, c.name, data); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return fmt.Errorf("failed to save %s snapshot: %w", c.name, err)
	}
	return nil
}

// update is mutate followed by flush
func (c *collection[T]) update(ctx context.Context, fn func(*T) error) error {
	if err := c.mutate(fn); err != nil {
		return err
	}
	return c.flush(ctx)
}

// MemoryStore keeps snapshots in memory. It backs tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
	return nil
}
