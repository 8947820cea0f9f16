package store

import (
	"sync"
	"time"

	"wishwall/pkg/domain"
)

// MemoryStore keeps wishes in-process. Used in tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	wishes []domain.Wish // insertion order, oldest first
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertWish appends a wish, assigning id and creation timestamp.
func (m *MemoryStore) InsertWish(w domain.Wish) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = NewID()
	w.CreatedAt = time.Now().UTC()
	m.wishes = append(m.wishes, w)
	return w.ID, nil
}

// CountByIPSince counts wishes from the raw address created at or after since.
func (m *MemoryStore) CountByIPSince(ip string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, w := range m.wishes {
		if w.IPPlain == ip && !w.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// ListRecent returns the newest wishes first, capped at limit.
func (m *MemoryStore) ListRecent(limit int) ([]domain.Wish, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []domain.Wish{}, nil
	}
	res := make([]domain.Wish, 0, limit)
	for i := len(m.wishes) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, m.wishes[i])
	}
	return res, nil
}
