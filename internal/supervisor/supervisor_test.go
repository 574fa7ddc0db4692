package supervisor

import (
	"path/filepath"
	"testing"

	"mazeserver/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load([]string{"--data", dir, "--web", filepath.Join(dir, "web"), "--no-console-log"})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := testConfig(t)

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.engine == nil || srv.registry == nil || srv.dispatch == nil || srv.listener == nil ||
		srv.httpSrv == nil || srv.tickLoop == nil || srv.auditTrl == nil || srv.adminTbl == nil ||
		srv.opStore == nil || srv.consoleUI == nil {
		t.Fatal("New left a component unwired")
	}

	// Stop on an idle loop blocks until Run observes it, so the loop must
	// be running before the sequence tears it down. The console worker is
	// not started here, so its done channel is pre-closed to stand in for
	// an already-exited console.
	go srv.tickLoop.Run()

	consoleShutdown := make(chan struct{})
	consoleDone := make(chan struct{})
	close(consoleDone)
	srv.shutdownSequence(consoleShutdown, consoleDone)
}

func TestNewBootstrapsOperatorOnFirstRun(t *testing.T) {
	cfg := testConfig(t)

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.opStore == nil {
		t.Fatal("expected an operator store to be created")
	}

	// A second New over the same data dir, with the persisted account
	// already in place, must still succeed and wire an operator store.
	srv2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (second): %v", err)
	}
	if srv2.opStore == nil {
		t.Fatal("expected the reloaded operator store to be non-nil")
	}
}
