package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeStatus struct{}

func (fakeStatus) ConnectedPlayers() int { return 3 }
func (fakeStatus) OnlinePlayers() int    { return 3 }
func (fakeStatus) TotalPlayers() int     { return 5 }
func (fakeStatus) RemainingCoins() int   { return 42 }
func (fakeStatus) FinishedCount() int    { return 1 }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>ok</html>"), 0o644); err != nil {
		t.Fatalf("seed index.html: %v", err)
	}
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatalf("seed secret: %v", err)
	}

	srv := New(":0", root, ConfigView{ServerName: "Test Maze"}, fakeStatus{}, time.Now(), nil)
	return srv, root
}

func TestStaticFileServed(t *testing.T) {
	srv, _ := newTestServer(t)
	// http.FileServer redirects a request for ".../index.html" to its
	// directory, so the index is fetched through "/".
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	srv, root := newTestServer(t)
	// Escape root via a relative .. segment targeting the sibling secret file.
	parent := filepath.Dir(root)
	rel, err := filepath.Rel(root, filepath.Join(parent, "secret.txt"))
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/"+filepath.ToSlash(rel), nil)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAPIConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ConfigView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ServerName != "Test Maze" {
		t.Fatalf("ServerName = %q, want %q", got.ServerName, "Test Maze")
	}
}

func TestAPIStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.httpSrv.Handler.ServeHTTP(rec, req)

	var got StatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.OnlinePlayers != 3 || got.RemainingCoins != 42 || got.FinishedCount != 1 {
		t.Fatalf("unexpected status payload: %+v", got)
	}
}
