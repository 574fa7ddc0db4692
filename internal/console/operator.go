package console

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Level is the operator privilege tier a command requires, in increasing
// order of privilege.
type Level int

const (
	LevelNone       Level = iota
	LevelModerator        // kick, kill, system, players
	LevelAdmin            // give, tp, coin
	LevelSuperAdmin       // clear, admin, restart
)

// operatorRecord is the persisted shape of the console's single operator
// account: a bcrypt password hash and a TOTP secret, gating every
// privileged command behind two factors rather than trusting the invoking
// user string.
type operatorRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	TOTPSecret   string `json:"totpSecret"`
	Level        Level  `json:"level"`
}

// OperatorStore persists the operator account to operator.json under the
// data directory and verifies login attempts against it.
type OperatorStore struct {
	path string
	rec  operatorRecord
}

// LoadOrBootstrap reads operator.json from dataDir, or creates a fresh
// super-admin operator account if none exists yet. On first run it
// returns the generated password and a path to a QR enrollment image for
// the TOTP secret; both are empty strings on subsequent runs.
func LoadOrBootstrap(dataDir, issuer string) (*OperatorStore, string, string, error) {
	path := filepath.Join(dataDir, "operator.json")

	if data, err := os.ReadFile(path); err == nil {
		var rec operatorRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, "", "", fmt.Errorf("parse %s: %w", path, err)
		}
		return &OperatorStore{path: path, rec: rec}, "", "", nil
	} else if !os.IsNotExist(err) {
		return nil, "", "", fmt.Errorf("read %s: %w", path, err)
	}

	password, err := randomPassword()
	if err != nil {
		return nil, "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("hash operator password: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: "operator"})
	if err != nil {
		return nil, "", "", fmt.Errorf("generate TOTP key: %w", err)
	}

	rec := operatorRecord{
		Username:     "operator",
		PasswordHash: string(hash),
		TOTPSecret:   key.Secret(),
		Level:        LevelSuperAdmin,
	}
	s := &OperatorStore{path: path, rec: rec}
	if err := s.save(); err != nil {
		return nil, "", "", err
	}

	qrPath := filepath.Join(dataDir, "operator-totp-qr.png")
	if err := writeEnrollmentQR(qrPath, key.URL()); err != nil {
		qrPath = ""
	}
	return s, password, qrPath, nil
}

func (s *OperatorStore) save() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s.rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Authenticate verifies a username/password/TOTP-code triple and reports
// the operator's configured level on success.
func (s *OperatorStore) Authenticate(username, password, totpCode string) (Level, bool) {
	if username != s.rec.Username {
		return LevelNone, false
	}
	if bcrypt.CompareHashAndPassword([]byte(s.rec.PasswordHash), []byte(password)) != nil {
		return LevelNone, false
	}
	if !totp.Validate(totpCode, s.rec.TOTPSecret) {
		return LevelNone, false
	}
	return s.rec.Level, true
}

func randomPassword() (string, error) {
	buf := make([]byte, 15)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

func writeEnrollmentQR(path, url string) error {
	code, err := qr.Encode(url, qr.M, qr.Auto)
	if err != nil {
		return fmt.Errorf("encode TOTP QR: %w", err)
	}
	code, err = barcode.Scale(code, 256, 256)
	if err != nil {
		return fmt.Errorf("scale TOTP QR: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return fmt.Errorf("render TOTP QR: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
