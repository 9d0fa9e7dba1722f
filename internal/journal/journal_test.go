package journal

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStartAndGetSession(t *testing.T) {
	store := newTestStore(t)

	rec := &SessionRecord{
		ID:           "sess-1",
		Source:       "interactive",
		SnapshotPath: "/tmp/memory.json",
	}
	if err := store.StartSession(rec); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	loaded, err := store.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.ID != "sess-1" {
		t.Errorf("ID = %s, want sess-1", loaded.ID)
	}
	if loaded.Source != "interactive" {
		t.Errorf("Source = %s, want interactive", loaded.Source)
	}
	if loaded.SnapshotPath != "/tmp/memory.json" {
		t.Errorf("SnapshotPath = %s, want /tmp/memory.json", loaded.SnapshotPath)
	}
	if loaded.StartedAt.IsZero() {
		t.Error("StartedAt should be set by the database")
	}
	if loaded.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil for a running session", loaded.EndedAt)
	}
}

func TestGetSessionMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestEndSessionStoresCounters(t *testing.T) {
	store := newTestStore(t)

	if err := store.StartSession(&SessionRecord{ID: "sess-1", Source: "script"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.EndSession("sess-1", 12, 3); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	loaded, err := store.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.EndedAt == nil {
		t.Fatal("EndedAt should be set after EndSession")
	}
	if loaded.Actions != 12 {
		t.Errorf("Actions = %d, want 12", loaded.Actions)
	}
	if loaded.Turns != 3 {
		t.Errorf("Turns = %d, want 3", loaded.Turns)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	store := newTestStore(t)

	if err := store.StartSession(&SessionRecord{ID: "sess-1"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	events := []*Event{
		{SessionID: "sess-1", Seq: 1, TurnKey: "input_a1b2c3d4", ActionKey: "click_region_2_3",
			Action: `{"type":"click","x":240,"y":310}`, Succeeded: true},
		{SessionID: "sess-1", Seq: 2, TurnKey: "input_a1b2c3d4", ActionKey: "type_short",
			Action: `{"type":"type","text":"hi"}`, Succeeded: false,
			Echo: "Echo: Similar pattern 'type_short' succeeded 75.0% of the time (n=4)"},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ev); err != nil {
			t.Fatalf("AppendEvent(seq=%d) failed: %v", ev.Seq, err)
		}
		if ev.ID == 0 {
			t.Errorf("AppendEvent(seq=%d) did not set ID", ev.Seq)
		}
	}

	loaded, err := store.Events("sess-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d events, want 2", len(loaded))
	}
	if loaded[0].Seq != 1 || loaded[1].Seq != 2 {
		t.Errorf("events out of order: seq %d then %d", loaded[0].Seq, loaded[1].Seq)
	}
	if loaded[0].ActionKey != "click_region_2_3" {
		t.Errorf("ActionKey = %s, want click_region_2_3", loaded[0].ActionKey)
	}
	if loaded[0].Action != `{"type":"click","x":240,"y":310}` {
		t.Errorf("Action = %s, want original JSON", loaded[0].Action)
	}
	if !loaded[0].Succeeded {
		t.Error("first event should be marked succeeded")
	}
	if loaded[1].Succeeded {
		t.Error("second event should be marked failed")
	}
	if loaded[1].Echo == "" {
		t.Error("second event should carry its suggestion text")
	}
	if loaded[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set by the database")
	}
}

func TestEventsOrderedBySeqNotInsertion(t *testing.T) {
	store := newTestStore(t)

	if err := store.StartSession(&SessionRecord{ID: "sess-1"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	for _, seq := range []int{3, 1, 2} {
		ev := &Event{SessionID: "sess-1", Seq: seq, ActionKey: "scroll_down", Succeeded: true}
		if err := store.AppendEvent(ev); err != nil {
			t.Fatalf("AppendEvent(seq=%d) failed: %v", seq, err)
		}
	}

	loaded, err := store.Events("sess-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	for i, ev := range loaded {
		if ev.Seq != i+1 {
			t.Errorf("loaded[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestEventsScopedToSession(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"sess-1", "sess-2"} {
		if err := store.StartSession(&SessionRecord{ID: id}); err != nil {
			t.Fatalf("StartSession(%s) failed: %v", id, err)
		}
	}
	if err := store.AppendEvent(&Event{SessionID: "sess-1", Seq: 1, ActionKey: "key_enter", Succeeded: true}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := store.AppendEvent(&Event{SessionID: "sess-2", Seq: 1, ActionKey: "key_escape", Succeeded: true}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	loaded, err := store.Events("sess-2")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("got %d events, want 1", len(loaded))
	}
	if loaded[0].ActionKey != "key_escape" {
		t.Errorf("ActionKey = %s, want key_escape", loaded[0].ActionKey)
	}
}

func TestRecentSessionsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	// Same CURRENT_TIMESTAMP resolution for all three, so the id tie-break
	// decides the order.
	for _, id := range []string{"sess-a", "sess-b", "sess-c"} {
		if err := store.StartSession(&SessionRecord{ID: id}); err != nil {
			t.Fatalf("StartSession(%s) failed: %v", id, err)
		}
	}

	sessions, err := store.RecentSessions(2)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "sess-c" {
		t.Errorf("sessions[0].ID = %s, want sess-c", sessions[0].ID)
	}
	if sessions[1].ID != "sess-b" {
		t.Errorf("sessions[1].ID = %s, want sess-b", sessions[1].ID)
	}
}

func TestRecentSessionsEmpty(t *testing.T) {
	store := newTestStore(t)

	sessions, err := store.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions, want 0", len(sessions))
	}
}

func TestDuplicateSessionIDRejected(t *testing.T) {
	store := newTestStore(t)

	if err := store.StartSession(&SessionRecord{ID: "sess-1"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.StartSession(&SessionRecord{ID: "sess-1"}); err == nil {
		t.Error("expected error for duplicate session id")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.StartSession(&SessionRecord{ID: "sess-1"}); err != nil {
		t.Fatalf("StartSession on fresh file failed: %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)

	if err := store.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.StartSession(&SessionRecord{ID: "sess-1", Source: "script"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.AppendEvent(&Event{SessionID: "sess-1", Seq: 1, ActionKey: "wait_short", Succeeded: true}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	events, err := reopened.Events("sess-1")
	if err != nil {
		t.Fatalf("Events after reopen failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events after reopen, want 1", len(events))
	}
	if events[0].ActionKey != "wait_short" {
		t.Errorf("ActionKey = %s, want wait_short", events[0].ActionKey)
	}
}
