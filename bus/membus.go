package bus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// MemBusConfig configures an in-memory event bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 256).
	SubscriberBufferSize int
	// Store records every published event before fan-out. Optional.
	Store  EventStore
	Logger *slog.Logger
}

// MemBus is an in-memory event bus implementation.
type MemBus struct {
	mu         sync.RWMutex
	subs       map[string][]*memSub // server -> subscribers
	globalSubs []*memSub            // subscribers for all servers
	bufSize    int
	seq        uint64
	store      EventStore
	logger     *slog.Logger
	closed     bool
}

// NewMemBus creates a new in-memory event bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MemBus{
		subs:    make(map[string][]*memSub),
		bufSize: bufSize,
		store:   config.Store,
		logger:  logger,
	}
}

// Publish stamps event with the next sequence number, stores it and sends it
// to the server's subscribers and to global subscribers. If the bus is
// closed, the event is silently dropped.
func (b *MemBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return event
	}
	b.seq++
	event.Seq = b.seq

	if b.store != nil {
		if err := b.store.Append(context.Background(), event); err != nil {
			b.logger.Error("failed to persist event",
				"server", event.Server,
				"kind", event.Kind,
				"seq", event.Seq,
				"error", err,
			)
		}
	}

	for _, sub := range b.subs[event.Server] {
		sub.send(event)
	}
	for _, sub := range b.globalSubs {
		sub.send(event)
	}
	return event
}

// Subscribe registers a subscriber for one server.
// Returns a Subscription that must be closed when done.
func (b *MemBus) Subscribe(server string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize)
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[server] = append(b.subs[server], sub)
	sub.detach = func() { b.remove(server, sub) }
	return sub
}

// SubscribeAll registers a subscriber that receives events from all servers.
// Returns a Subscription that must be closed when done.
func (b *MemBus) SubscribeAll() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newMemSub(b.bufSize)
	if b.closed {
		sub.close()
		return sub
	}
	b.globalSubs = append(b.globalSubs, sub)
	sub.detach = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.globalSubs = slices.DeleteFunc(b.globalSubs, func(s *memSub) bool { return s == sub })
	}
	return sub
}

func (b *MemBus) remove(server string, sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := slices.DeleteFunc(b.subs[server], func(s *memSub) bool { return s == sub })
	if len(remaining) == 0 {
		delete(b.subs, server)
		return
	}
	b.subs[server] = remaining
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.globalSubs {
		sub.close()
	}
	return nil
}

// memSub is an in-memory subscription.
type memSub struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
	detach func()
}

func newMemSub(bufSize int) *memSub {
	return &memSub{
		ch: make(chan Event, bufSize),
	}
}

// Events returns a channel of events for this subscription.
func (s *memSub) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	if s.detach != nil {
		s.detach()
	}
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers an event to the subscription's channel.
// If the channel is full or the subscription is closed, the event is dropped.
func (s *memSub) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
	default:
		// Drop if channel full.
	}
}

// Compile-time interface checks.
var _ EventBus = (*MemBus)(nil)
var _ Subscription = (*memSub)(nil)
