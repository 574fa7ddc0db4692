package console

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestLoadOrBootstrapThenAuthenticate(t *testing.T) {
	dir := t.TempDir()

	store, password, qrPath, err := LoadOrBootstrap(dir, "mazeserver-test")
	if err != nil {
		t.Fatalf("LoadOrBootstrap: %v", err)
	}
	if password == "" {
		t.Fatal("expected a generated password on first bootstrap")
	}
	if qrPath == "" {
		t.Fatal("expected a QR enrollment path on first bootstrap")
	}

	code, err := totp.GenerateCode(store.rec.TOTPSecret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	level, ok := store.Authenticate("operator", password, code)
	if !ok {
		t.Fatal("expected successful authentication with generated credentials")
	}
	if level != LevelSuperAdmin {
		t.Fatalf("level = %d, want %d", level, LevelSuperAdmin)
	}

	if _, ok := store.Authenticate("operator", "wrong-password", code); ok {
		t.Fatal("expected authentication to fail with a wrong password")
	}
}

func TestLoadOrBootstrapReloadsExistingAccount(t *testing.T) {
	dir := t.TempDir()

	first, password, _, err := LoadOrBootstrap(dir, "mazeserver-test")
	if err != nil {
		t.Fatalf("LoadOrBootstrap (first): %v", err)
	}

	second, password2, qrPath2, err := LoadOrBootstrap(dir, "mazeserver-test")
	if err != nil {
		t.Fatalf("LoadOrBootstrap (second): %v", err)
	}
	if password2 != "" || qrPath2 != "" {
		t.Fatal("expected no generated password/QR path on reload of an existing account")
	}
	if first.rec.TOTPSecret != second.rec.TOTPSecret {
		t.Fatal("expected the reloaded account to keep the original TOTP secret")
	}

	code, _ := totp.GenerateCode(second.rec.TOTPSecret, time.Now())
	if _, ok := second.Authenticate("operator", password, code); !ok {
		t.Fatal("expected the original password to still authenticate after reload")
	}
}
