package audit

import (
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	trail, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer trail.Close()

	if err := trail.Record("operator", 3, "kick PLAYER_000001", true, "kicked PLAYER_000001"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := trail.Record("operator", 3, "give PLAYER_000001 hammer", false, "player not found"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := trail.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Line != "give PLAYER_000001 hammer" {
		t.Fatalf("entries[0].Line = %q, want most-recent-first ordering", entries[0].Line)
	}
	if entries[0].Success {
		t.Fatal("entries[0].Success = true, want false")
	}
	if !entries[1].Success {
		t.Fatal("entries[1].Success = false, want true")
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	trail, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer trail.Close()

	for i := 0; i < 5; i++ {
		if err := trail.Record("operator", 1, "help", true, "ok"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := trail.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
