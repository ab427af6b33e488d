package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testDB(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	run1 = time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)
	run2 = time.Date(2025, 9, 2, 6, 0, 0, 0, time.UTC)
)

func TestRecordNew(t *testing.T) {
	db := testDB(t)
	keys := []string{
		"2025-10-10|st-austell|Tron: Ares",
		"2025-11-21|st-austell|Wicked: For Good",
	}

	added, err := db.RecordNew(keys, run1)
	if err != nil {
		t.Fatalf("RecordNew: %v", err)
	}
	if strings.Join(added, ",") != strings.Join(keys, ",") {
		t.Errorf("expected all keys new on first run, got %v", added)
	}

	keys = append(keys, "2025-12-19|st-austell|Avatar: Fire and Ash")
	added, err = db.RecordNew(keys, run2)
	if err != nil {
		t.Fatalf("RecordNew: %v", err)
	}
	if len(added) != 1 || added[0] != "2025-12-19|st-austell|Avatar: Fire and Ash" {
		t.Errorf("expected only the new key, got %v", added)
	}

	n, err := db.Count()
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestRecordNewKeepsFirstSeen(t *testing.T) {
	db := testDB(t)
	key := "2025-10-10|st-austell|Tron: Ares"
	if _, err := db.RecordNew([]string{key}, run1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordNew([]string{key}, run2); err != nil {
		t.Fatal(err)
	}

	entries, err := db.Entries(0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].FirstSeenAt.Equal(run1) {
		t.Errorf("first_seen_at moved: got %v, want %v", entries[0].FirstSeenAt, run1)
	}
}

func TestKeyAbsentThisRunIsNotNewLater(t *testing.T) {
	db := testDB(t)
	key := "2025-10-10|st-austell|Tron: Ares"
	db.RecordNew([]string{key}, run1)
	// a run where the entry was dropped upstream
	db.RecordNew(nil, run2)

	added, err := db.RecordNew([]string{key}, run2.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 {
		t.Errorf("expected previously seen key not to be new, got %v", added)
	}
}

func TestRecordNewDuplicateInput(t *testing.T) {
	db := testDB(t)
	added, err := db.RecordNew([]string{"a", "a", "b"}, run1)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(added, ",") != "a,b" {
		t.Errorf("expected a,b, got %v", added)
	}
}

func TestSeen(t *testing.T) {
	db := testDB(t)
	db.RecordNew([]string{"a"}, run1)

	if ok, err := db.Seen("a"); err != nil || !ok {
		t.Errorf("Seen(a) = %v, %v", ok, err)
	}
	if ok, err := db.Seen("b"); err != nil || ok {
		t.Errorf("Seen(b) = %v, %v", ok, err)
	}
}

func TestEntriesOrderAndLimit(t *testing.T) {
	db := testDB(t)
	db.RecordNew([]string{"old"}, run1)
	db.RecordNew([]string{"new"}, run2)

	entries, err := db.Entries(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Key != "new" {
		t.Errorf("expected most recent first, got %v", entries)
	}
}

func TestLastRun(t *testing.T) {
	db := testDB(t)
	if !db.LastRun().IsZero() {
		t.Error("expected zero last run on fresh db")
	}
	if err := db.SetLastRun(run1); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}
	if got := db.LastRun(); !got.Equal(run1) {
		t.Errorf("LastRun() = %v, want %v", got, run1)
	}
	db.SetLastRun(run2)
	if got := db.LastRun(); !got.Equal(run2) {
		t.Errorf("LastRun() = %v, want %v", got, run2)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	db.RecordNew([]string{"a"}, run1)
	db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db file: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	added, _ := db.RecordNew([]string{"a", "b"}, run2)
	if len(added) != 1 || added[0] != "b" {
		t.Errorf("expected only b new after reopen, got %v", added)
	}
}
