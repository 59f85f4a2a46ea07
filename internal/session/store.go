package session

import (
	"context"
	"sync"
	"time"
)

// Store keeps sessions isolated by ID for a bounded time.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type memEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Reads extend the entry's lifetime.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{items: map[string]memEntry{}, ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.items[s.ID] = memEntry{sess: clone(s), expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	if now.After(e.expiresAt) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	e.expiresAt = now.Add(m.ttl)
	m.items[id] = e
	out := clone(&e.sess)
	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) sweepLocked() {
	now := m.now()
	for id, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, id)
		}
	}
}

func clone(s *Session) Session {
	out := *s
	out.Warnings = append([]string(nil), s.Warnings...)
	return out
}
