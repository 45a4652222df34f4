package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/petal-labs/tooltailor/override"
)

func newSQLiteToolStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "customizations.json")),
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteToolStore(t, filepath.Join(dir, "tooltailor.db")),
	}
}

func sampleCustomization(server string) Customization {
	overrides := override.NewOverrideMap()
	overrides.Set("search", override.NameOverride("find"))
	overrides.Set("fetch", override.Override{
		Name:        override.SetTo("download"),
		Description: override.SetTo("Download a URL"),
	})
	return Customization{
		Server:         server,
		ToolsAllowlist: []string{"download", "find"},
		ToolsOverride:  overrides,
	}
}

func TestStorePutGetDeleteRoundTrip(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			stored, err := store.Put(ctx, sampleCustomization("web"))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if stored.Revision == "" {
				t.Fatal("Put() revision is empty")
			}
			if stored.UpdatedAt.IsZero() {
				t.Fatal("Put() updated_at is zero")
			}

			got, ok, err := store.Get(ctx, "web")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !ok {
				t.Fatal("Get() ok = false, want true")
			}
			if got.Revision != stored.Revision {
				t.Fatalf("Get() revision = %q, want %q", got.Revision, stored.Revision)
			}
			if !reflect.DeepEqual(got.ToolsAllowlist, []string{"download", "find"}) {
				t.Fatalf("Get() allowlist = %v", got.ToolsAllowlist)
			}
			if keys := got.ToolsOverride.Keys(); !reflect.DeepEqual(keys, []string{"search", "fetch"}) {
				t.Fatalf("Get() override keys = %v, want insertion order", keys)
			}
			if !got.ToolsOverride.Equal(stored.ToolsOverride) {
				t.Fatalf("Get() overrides = %v, want %v", got.ToolsOverride, stored.ToolsOverride)
			}

			if err := store.Delete(ctx, "web"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, ok, err := store.Get(ctx, "web"); err != nil || ok {
				t.Fatalf("Get() after delete = ok %v, err %v; want missing", ok, err)
			}
			if err := store.Delete(ctx, "web"); err != nil {
				t.Fatalf("Delete() missing error = %v", err)
			}
		})
	}
}

func TestStoreKeepsAllowlistNilVersusEmpty(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Put(ctx, Customization{Server: "all-on"}); err != nil {
				t.Fatalf("Put(all-on) error = %v", err)
			}
			if _, err := store.Put(ctx, Customization{Server: "all-off", ToolsAllowlist: []string{}}); err != nil {
				t.Fatalf("Put(all-off) error = %v", err)
			}

			on, _, err := store.Get(ctx, "all-on")
			if err != nil {
				t.Fatalf("Get(all-on) error = %v", err)
			}
			if on.ToolsAllowlist != nil {
				t.Fatalf("Get(all-on) allowlist = %#v, want nil", on.ToolsAllowlist)
			}
			if !on.IsDefault() {
				t.Fatal("IsDefault() = false, want true")
			}

			off, _, err := store.Get(ctx, "all-off")
			if err != nil {
				t.Fatalf("Get(all-off) error = %v", err)
			}
			if off.ToolsAllowlist == nil || len(off.ToolsAllowlist) != 0 {
				t.Fatalf("Get(all-off) allowlist = %#v, want empty non-nil", off.ToolsAllowlist)
			}
		})
	}
}

func TestStoreListOrderAndReplace(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, server := range []string{"zeta", "alpha", "mid"} {
				if _, err := store.Put(ctx, Customization{Server: server}); err != nil {
					t.Fatalf("Put(%s) error = %v", server, err)
				}
			}
			first, _, _ := store.Get(ctx, "mid")
			second, err := store.Put(ctx, sampleCustomization("mid"))
			if err != nil {
				t.Fatalf("Put(mid) replace error = %v", err)
			}
			if second.Revision == first.Revision {
				t.Fatal("Put() replace kept the old revision")
			}

			items, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := make([]string, 0, len(items))
			for _, item := range items {
				got = append(got, item.Server)
			}
			if want := []string{"alpha", "mid", "zeta"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("List() servers = %v, want %v", got, want)
			}
			if items[1].ToolsOverride.Len() != 2 {
				t.Fatalf("List() mid overrides = %d, want 2", items[1].ToolsOverride.Len())
			}
		})
	}
}

func TestStoreRejectsEmptyServer(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(context.Background(), Customization{Server: "  "}); err == nil {
				t.Fatal("Put() expected error for empty server")
			}
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stored, err := store.Put(ctx, sampleCustomization("web"))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			stored.ToolsAllowlist[0] = "mutated"
			stored.ToolsOverride.Delete("search")

			got, _, err := store.Get(ctx, "web")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ToolsAllowlist[0] != "download" {
				t.Fatalf("Get() allowlist[0] = %q, want download", got.ToolsAllowlist[0])
			}
			if _, ok := got.ToolsOverride.Get("search"); !ok {
				t.Fatal("Get() lost the search override after caller mutation")
			}
		})
	}
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := store.List(ctx); err == nil {
				t.Fatal("List() expected context error")
			}
		})
	}
}

func TestFileStoreListEmptyWhenMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("List() len = %d, want 0", len(items))
	}
}

func TestFileStoreVersionedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "customizations.json")
	store := NewFileStore(path)
	store.now = func() time.Time { return time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC) }

	if _, err := store.Put(context.Background(), sampleCustomization("web")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if doc["version"] != "1" {
		t.Fatalf("version = %v, want 1", doc["version"])
	}
	text := string(data)
	if !strings.Contains(text, `"updated_at": "2026-02-09T12:00:00Z"`) {
		t.Fatalf("document missing stamped time:\n%s", text)
	}
	if strings.Index(text, `"search"`) > strings.Index(text, `"fetch"`) {
		t.Fatalf("override keys out of insertion order:\n%s", text)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customizations.json")
	if err := os.WriteFile(path, []byte(`{"version":"9","customizations":[]}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := NewFileStore(path).List(context.Background()); err == nil {
		t.Fatal("List() expected error for unknown version")
	}
}

func TestFileStoreEmptyPathError(t *testing.T) {
	if _, err := NewFileStore("").List(context.Background()); err == nil {
		t.Fatal("List() expected error for empty path")
	}
}

func TestSQLiteStorePersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tooltailor.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	stored, err := first.Put(ctx, sampleCustomization("web"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newSQLiteToolStore(t, path)
	got, ok, err := second.Get(ctx, "web")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v; want stored record", ok, err)
	}
	if got.Revision != stored.Revision {
		t.Fatalf("Get() revision = %q, want %q", got.Revision, stored.Revision)
	}
	if !got.ToolsOverride.Equal(stored.ToolsOverride) {
		t.Fatalf("Get() overrides = %v, want %v", got.ToolsOverride, stored.ToolsOverride)
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(" "); err == nil {
		t.Fatal("NewSQLiteStore() expected error for empty dsn")
	}
}
