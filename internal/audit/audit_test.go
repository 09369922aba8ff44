package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndQuery(t *testing.T) {
	store := openTestStore(t)

	store.Record("web1", "connected", "10.0.0.1:22")
	store.Record("web2", "connect_failed", "connection refused")
	store.Record("web1", "closed", "")

	events, err := store.RecentByHost("web1", 10)
	if err != nil {
		t.Fatalf("RecentByHost: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events for web1, want 2", len(events))
	}
	// Newest first.
	if events[0].Type != "closed" || events[1].Type != "connected" {
		t.Errorf("events = %v", events)
	}
	if events[1].Details != "10.0.0.1:22" {
		t.Errorf("Details = %q", events[1].Details)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	all, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d events total, want 3", len(all))
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 10; i++ {
		store.Record("web1", "reused", "")
	}
	events, err := store.RecentByHost("web1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want limit 3", len(events))
	}
}

func TestSinkBridgesConnectionEvents(t *testing.T) {
	store := openTestStore(t)
	sink := store.Sink()

	sink(sshconn.Event{
		Host:      "web1",
		Type:      sshconn.EventCommandTimeout,
		Timestamp: time.Now(),
		Details:   "after 30s",
	})

	events, err := store.RecentByHost("web1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != "command_timeout" || events[0].Details != "after 30s" {
		t.Errorf("events = %v", events)
	}
}

func TestReopenSeesPersistedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	store.Record("web1", "connected", "")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.RecentByHost("web1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events after reopen, want 1", len(events))
	}
}
