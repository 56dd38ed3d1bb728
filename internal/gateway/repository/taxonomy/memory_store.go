package taxonomy

import (
	"context"
	"fmt"
	"sync"

	model "promptbuilder/internal/taxonomy"
)

// MemoryStore keeps the taxonomy in process. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items []model.Item
	saves int
}

func NewMemoryStore(seed []model.Item) *MemoryStore {
	return &MemoryStore{items: cloneItems(seed)}
}

func (s *MemoryStore) Load(_ context.Context) (model.Data, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Group(cloneItems(s.items)), nil
}

func (s *MemoryStore) Save(_ context.Context, items []model.Item) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = cloneItems(items)
	s.saves++
	return nil
}

// Saves counts successful writes.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out
}
