package console

import "testing"

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "give PLAYER_000001 hammer", []string{"give", "PLAYER_000001", "hammer"}},
		{"quoted span", `system "server restarting soon"`, []string{"system", "server restarting soon"}},
		{"mixed", `tp PLAYER_000001 1 2 3`, []string{"tp", "PLAYER_000001", "1", "2", "3"}},
		{"empty", "   ", nil},
		{"collapses whitespace", "give   PLAYER_1    hammer", []string{"give", "PLAYER_1", "hammer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.line)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.line, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("tokenize(%q)[%d] = %q, want %q", tt.line, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCommandTableMinLevels(t *testing.T) {
	cases := map[string]Level{
		"help":     LevelNone,
		"history":  LevelNone,
		"auditlog": LevelModerator,
		"kick":     LevelModerator,
		"kill":     LevelModerator,
		"system":   LevelModerator,
		"players":  LevelModerator,
		"give":     LevelAdmin,
		"tp":       LevelAdmin,
		"coin":     LevelAdmin,
		"clear":    LevelSuperAdmin,
		"admin":    LevelSuperAdmin,
		"restart":  LevelSuperAdmin,
	}
	for name, want := range cases {
		cmd, ok := commandTable[name]
		if !ok {
			t.Fatalf("missing command %q", name)
		}
		if cmd.minLevel != want {
			t.Fatalf("command %q minLevel = %d, want %d", name, cmd.minLevel, want)
		}
	}
}

func TestRecordHistoryBounded(t *testing.T) {
	c := &Console{}
	for i := 0; i < historyCap+10; i++ {
		c.recordHistory("help", true, "ok")
	}
	hist := c.History()
	if len(hist) != historyCap {
		t.Fatalf("history length = %d, want %d", len(hist), historyCap)
	}
}
