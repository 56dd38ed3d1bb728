package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	raw    []byte
	stored time.Time
}

// MemoryStore is the process-local archive used when object storage is not
// configured. Snapshots do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	name, err := validName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[name] = memoryEntry{raw: append([]byte(nil), content...), stored: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.raw...), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Info, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	infos := make([]Info, 0, len(s.entries))
	for name, e := range s.entries {
		at, ok := SavedAt(name)
		if !ok {
			at = e.stored
		}
		infos = append(infos, Info{Name: name, Size: int64(len(e.raw)), SavedAt: at})
	}
	s.mu.RUnlock()
	newestFirst(infos)
	return infos, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	name, err := validName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return ErrNotFound
	}
	delete(s.entries, name)
	return nil
}
