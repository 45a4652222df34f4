package daemon

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/tooltailor/override"
)

// Session limits applied when ServerConfig leaves them zero.
const (
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultMaxSessions        = 256
)

// editSession is one UI session. Requests touching it serialize on mu.
type editSession struct {
	id        string
	server    string
	createdAt time.Time
	// lastUsed is guarded by the registry lock.
	lastUsed time.Time

	mu      sync.Mutex
	session *override.Session
}

// sessionRegistry holds open sessions keyed by id. Sessions idle longer
// than idleTimeout are dropped, and opening a session beyond maxSessions
// evicts the least recently used one.
type sessionRegistry struct {
	mu          sync.Mutex
	items       map[string]*editSession
	now         func() time.Time
	idleTimeout time.Duration
	maxSessions int
}

func newSessionRegistry(idleTimeout time.Duration, maxSessions int) *sessionRegistry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &sessionRegistry{
		items:       make(map[string]*editSession),
		now:         time.Now,
		idleTimeout: idleTimeout,
		maxSessions: maxSessions,
	}
}

func (r *sessionRegistry) open(server string, session *override.Session) *editSession {
	now := r.now().UTC()
	entry := &editSession{
		id:        uuid.NewString(),
		server:    server,
		createdAt: now,
		lastUsed:  now,
		session:   session,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	for len(r.items) >= r.maxSessions {
		r.evictOldestLocked()
	}
	r.items[entry.id] = entry
	return entry
}

func (r *sessionRegistry) get(id string) (*editSession, bool) {
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[id]
	if !ok {
		return nil, false
	}
	if r.expired(entry, now) {
		delete(r.items, id)
		return nil, false
	}
	entry.lastUsed = now
	return entry, true
}

func (r *sessionRegistry) close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// sweep drops idle sessions and returns how many were removed.
func (r *sessionRegistry) sweep() int {
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

func (r *sessionRegistry) sweepLocked(now time.Time) int {
	removed := 0
	for id, entry := range r.items {
		if r.expired(entry, now) {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

func (r *sessionRegistry) evictOldestLocked() {
	var oldest *editSession
	for _, entry := range r.items {
		if oldest == nil || entry.lastUsed.Before(oldest.lastUsed) {
			oldest = entry
		}
	}
	if oldest != nil {
		delete(r.items, oldest.id)
	}
}

func (r *sessionRegistry) expired(entry *editSession, now time.Time) bool {
	return now.Sub(entry.lastUsed) > r.idleTimeout
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
