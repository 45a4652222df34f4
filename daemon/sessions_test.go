package daemon

import (
	"testing"
	"time"

	"github.com/petal-labs/tooltailor/override"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(idle time.Duration, maxSessions int) (*sessionRegistry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	r := newSessionRegistry(idle, maxSessions)
	r.now = clock.now
	return r, clock
}

func TestSessionRegistryExpiresIdleSessions(t *testing.T) {
	r, clock := newTestRegistry(10*time.Minute, 0)
	idle := r.open("files", override.NewSession(override.Inputs{}))
	active := r.open("files", override.NewSession(override.Inputs{}))

	clock.advance(6 * time.Minute)
	if _, ok := r.get(active.id); !ok {
		t.Fatal("get(active) ok = false")
	}
	clock.advance(6 * time.Minute)

	if _, ok := r.get(idle.id); ok {
		t.Fatal("get(idle) ok = true after idle timeout")
	}
	if got := r.sweep(); got != 0 {
		t.Fatalf("sweep() = %d, want 0", got)
	}
	if r.len() != 1 {
		t.Fatalf("len() = %d, want 1", r.len())
	}

	clock.advance(11 * time.Minute)
	if got := r.sweep(); got != 1 {
		t.Fatalf("sweep() = %d, want 1", got)
	}
	if r.len() != 0 {
		t.Fatalf("len() = %d, want 0", r.len())
	}
}

func TestSessionRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	r, clock := newTestRegistry(time.Hour, 2)
	first := r.open("files", override.NewSession(override.Inputs{}))
	clock.advance(time.Second)
	second := r.open("files", override.NewSession(override.Inputs{}))
	clock.advance(time.Second)
	if _, ok := r.get(first.id); !ok {
		t.Fatal("get(first) ok = false")
	}
	clock.advance(time.Second)

	third := r.open("files", override.NewSession(override.Inputs{}))
	if r.len() != 2 {
		t.Fatalf("len() = %d, want 2", r.len())
	}
	if _, ok := r.get(second.id); ok {
		t.Fatal("least recently used session still open")
	}
	for _, id := range []string{first.id, third.id} {
		if _, ok := r.get(id); !ok {
			t.Fatalf("get(%s) ok = false", id)
		}
	}
}

func TestSessionRegistryDefaults(t *testing.T) {
	r := newSessionRegistry(0, 0)
	if r.idleTimeout != DefaultSessionIdleTimeout || r.maxSessions != DefaultMaxSessions {
		t.Fatalf("defaults = %v, %d", r.idleTimeout, r.maxSessions)
	}
}
