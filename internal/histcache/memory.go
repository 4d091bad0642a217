package histcache

import (
	"sync"
	"time"

	"fishcast/internal/models"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// ephemeral deployments where no durable cache is wanted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	series  map[string]*models.SeriesSet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.CacheEntry),
		series:  make(map[string]*models.SeriesSet),
	}
}

func (m *MemoryStore) GetEntry(key string) (*models.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	out := e
	return &out, nil
}

func (m *MemoryStore) GetSeriesSet(key string) (*models.SeriesSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.series[key], nil
}

func (m *MemoryStore) PutSeriesSet(key string, set *models.SeriesSet, refreshedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = models.CacheEntry{
		Key:         key,
		Coordinate:  set.Coordinate,
		AsOf:        set.AsOf,
		RefreshedAt: refreshedAt,
	}
	m.series[key] = set
	return nil
}
