package bus

import (
	"context"
	"testing"
)

func appendEvents(t *testing.T, store EventStore, servers ...string) {
	t.Helper()
	for i, server := range servers {
		e := NewEvent(EventDiscoveryFinished, server)
		e.Seq = uint64(i + 1)
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestMemEventStore_ListFilters(t *testing.T) {
	store := NewMemEventStore(0)
	appendEvents(t, store, "files", "web", "files", "files")
	ctx := context.Background()

	all, err := store.List(ctx, "", 0, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("List(all) = %d events, %v; want 4", len(all), err)
	}
	files, _ := store.List(ctx, "files", 0, 0)
	if len(files) != 3 {
		t.Fatalf("List(files) = %d events, want 3", len(files))
	}
	after, _ := store.List(ctx, "files", 1, 0)
	if len(after) != 2 || after[0].Seq != 3 {
		t.Fatalf("List(files, after 1) = %+v", after)
	}
	limited, _ := store.List(ctx, "", 0, 2)
	if len(limited) != 2 {
		t.Fatalf("List(limit 2) = %d events", len(limited))
	}

	latest, err := store.LatestSeq(ctx)
	if err != nil || latest != 4 {
		t.Fatalf("LatestSeq() = %d, %v; want 4", latest, err)
	}
}

func TestMemEventStore_Capacity(t *testing.T) {
	store := NewMemEventStore(2)
	appendEvents(t, store, "a", "b", "c")

	events, _ := store.List(context.Background(), "", 0, 0)
	if len(events) != 2 || events[0].Server != "b" || events[1].Server != "c" {
		t.Fatalf("events = %+v, want the two newest", events)
	}
}

func TestMemEventStore_Empty(t *testing.T) {
	store := NewMemEventStore(0)
	latest, err := store.LatestSeq(context.Background())
	if err != nil || latest != 0 {
		t.Fatalf("LatestSeq() = %d, %v; want 0", latest, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Append(ctx, NewEvent(EventDriftDetected, "a")); err == nil {
		t.Fatal("Append() with cancelled context expected error")
	}
}
