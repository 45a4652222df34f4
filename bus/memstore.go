package bus

import (
	"context"
	"sync"
)

// DefaultEventCapacity bounds a MemEventStore created with capacity <= 0.
const DefaultEventCapacity = 1024

// MemEventStore is a thread-safe in-memory event store that keeps the most
// recent events up to its capacity.
type MemEventStore struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemEventStore creates a new in-memory event store.
func NewMemEventStore(capacity int) *MemEventStore {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &MemEventStore{capacity: capacity}
}

func (s *MemEventStore) Append(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	return nil
}

func (s *MemEventStore) List(ctx context.Context, server string, afterSeq uint64, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for _, e := range s.events {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		if server != "" && e.Server != server {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemEventStore) LatestSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].Seq, nil
}

// Compile-time interface check.
var _ EventStore = (*MemEventStore)(nil)
