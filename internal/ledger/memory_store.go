package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryEntryStore creates a concurrency-safe in-memory entry store for
// tests and dev mode.
func NewMemoryEntryStore() EntryStore {
	return &memoryEntryStore{entries: make(map[string]Entry)}
}

func (s *memoryEntryStore) Create(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.UpdatedAt = entry.CreatedAt
	s.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (s *memoryEntryStore) UpdateStatus(_ context.Context, id string, from, to Status, annotations map[string]string) (bool, error) {
	if !from.CanTransition(to) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false, ErrEntryNotFound
	}
	if entry.Status != from {
		return false, nil
	}
	entry.Status = to
	entry.UpdatedAt = time.Now().UTC()
	if len(annotations) > 0 {
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]string, len(annotations))
		}
		for k, v := range annotations {
			entry.Metadata[k] = v
		}
	}
	s.entries[id] = entry
	return true, nil
}

func (s *memoryEntryStore) FindByID(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return cloneEntry(entry), nil
}

func (s *memoryEntryStore) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.collect(func(e Entry) bool { return e.AccountID == accountID })
	return page(matched, limit, offset), nil
}

func (s *memoryEntryStore) ListByDriver(_ context.Context, driverID string, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.collect(func(e Entry) bool {
		return e.Kind == KindPayment && e.Metadata[MetaDriverID] == driverID
	})
	return page(matched, limit, offset), nil
}

// collect returns entries matching the predicate, newest first. Callers hold the lock.
func (s *memoryEntryStore) collect(match func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if match(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(entries []Entry, limit, offset int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func cloneEntry(e Entry) Entry {
	if e.Metadata != nil {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	return e
}
