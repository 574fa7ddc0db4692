package console

import (
	"path/filepath"
	"testing"
)

func TestAdminTableSetGetPersist(t *testing.T) {
	dir := t.TempDir()

	tbl, err := LoadAdminTable(dir)
	if err != nil {
		t.Fatalf("LoadAdminTable: %v", err)
	}
	if got := tbl.Get("PLAYER_000001"); got != 0 {
		t.Fatalf("Get on unset player = %d, want 0", got)
	}

	tbl.Set("PLAYER_000001", int(LevelAdmin))
	if got := tbl.Get("PLAYER_000001"); got != int(LevelAdmin) {
		t.Fatalf("Get = %d, want %d", got, int(LevelAdmin))
	}

	if err := tbl.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadAdminTable(dir)
	if err != nil {
		t.Fatalf("LoadAdminTable (reload): %v", err)
	}
	if got := reloaded.Get("PLAYER_000001"); got != int(LevelAdmin) {
		t.Fatalf("reloaded Get = %d, want %d", got, int(LevelAdmin))
	}
}

func TestLoadAdminTableMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	tbl, err := LoadAdminTable(dir)
	if err != nil {
		t.Fatalf("LoadAdminTable on missing dir: %v", err)
	}
	if tbl.Get("anyone") != 0 {
		t.Fatal("expected empty table")
	}
}
