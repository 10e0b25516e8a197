package manifest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-blog/internal/identity"
)

// MemoryStore keeps entries in process. Builds without a configured database
// use it, which makes every first build in a process a full build.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, p string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[normalizePath(p)]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *MemoryStore) Put(_ context.Context, entry *Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := *entry
	record.Path = normalizePath(entry.Path)
	record.ID = identity.ArtifactUUID(record.Path)
	record.UpdatedAt = m.now().UTC()
	if record.BuiltAt.IsZero() {
		record.BuiltAt = record.UpdatedAt
	}
	m.entries[record.Path] = record
	return &record, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, &entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalizePath(p)
	if _, ok := m.entries[key]; !ok {
		return ErrNotFound
	}
	delete(m.entries, key)
	return nil
}
