package tool

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps customizations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Customization
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Customization), now: time.Now}
}

// List returns every record ordered by server name.
func (s *MemoryStore) List(ctx context.Context) ([]Customization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Customization, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, cloneCustomization(item))
	}
	sortCustomizations(out)
	return out, nil
}

// Get returns the record for server.
func (s *MemoryStore) Get(ctx context.Context, server string) (Customization, bool, error) {
	if err := ctx.Err(); err != nil {
		return Customization{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[server]
	if !ok {
		return Customization{}, false, nil
	}
	return cloneCustomization(item), true, nil
}

// Put replaces the record for c.Server.
func (s *MemoryStore) Put(ctx context.Context, c Customization) (Customization, error) {
	if err := ctx.Err(); err != nil {
		return Customization{}, err
	}
	stamped, err := stamp(c, s.now())
	if err != nil {
		return Customization{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[stamped.Server] = stamped
	return cloneCustomization(stamped), nil
}

// Delete removes the record for server.
func (s *MemoryStore) Delete(ctx context.Context, server string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, server)
	return nil
}

var _ Store = (*MemoryStore)(nil)
