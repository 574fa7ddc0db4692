// Package supervisor owns the lifetime of every other component: it wires
// them together at startup and tears them down in a strict order at
// shutdown (stop accepting, close connections, join workers, stop the tick
// loop, drain the console, persist durable state).
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"mazeserver/internal/applog"
	"mazeserver/internal/audit"
	"mazeserver/internal/broadcast"
	"mazeserver/internal/config"
	"mazeserver/internal/console"
	"mazeserver/internal/dispatch"
	"mazeserver/internal/engine"
	"mazeserver/internal/httpapi"
	"mazeserver/internal/maze"
	"mazeserver/internal/ratelimit"
	"mazeserver/internal/registry"
	"mazeserver/internal/tick"
	"mazeserver/internal/transport"

	"github.com/gorilla/websocket"
)

const (
	tickPeriod     = 100 * time.Millisecond
	backupInterval = 5 * time.Minute
)

// statusAdapter satisfies httpapi.StatusProvider by combining the listener's
// connection count, the dispatcher's bound-session count, the registry's
// total record count, and the engine's match counters.
type statusAdapter struct {
	listener *transport.Listener
	disp     *dispatch.Dispatcher
	reg      *registry.Registry
	eng      *engine.Engine
}

func (a statusAdapter) ConnectedPlayers() int { return a.listener.Count() }
func (a statusAdapter) OnlinePlayers() int    { return a.disp.OnlineCount() }
func (a statusAdapter) TotalPlayers() int     { return a.reg.Count() }
func (a statusAdapter) RemainingCoins() int   { return a.eng.RemainingCoins() }
func (a statusAdapter) FinishedCount() int    { return a.eng.FinishedCount() }

// Server bundles every constructed component so Run and Shutdown can see
// them all.
type Server struct {
	cfg *config.Config
	log *applog.Sink

	registry  *registry.Registry
	engine    *engine.Engine
	rl        *ratelimit.Limiter
	bc        *broadcast.Broadcaster
	dispatch  *dispatch.Dispatcher
	listener  *transport.Listener
	httpSrv   *httpapi.Server
	tickLoop  *tick.Loop
	auditTrl  *audit.Trail
	adminTbl  *console.AdminTable
	opStore   *console.OperatorStore
	consoleUI *console.Console

	chatFile *os.File
	logFile  *os.File
}

// New constructs every component from cfg but starts nothing yet.
func New(cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logFile, err := applog.OpenFile(filepath.Join(cfg.DataDir, "server.log"))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	var consoleOut, fileOut *os.File
	if !cfg.NoConsoleLog {
		consoleOut = os.Stdout
	}
	if !cfg.NoFileLog {
		fileOut = logFile
	}
	sink := applog.New(applog.ParseLevel(cfg.LogLevel), writerOrNil(consoleOut), writerOrNil(fileOut))

	reg, err := registry.New(filepath.Join(cfg.DataDir, "players.json"), sink.Info("registry"))
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	mazePath := filepath.Join(cfg.DataDir, "maze_data.json")
	m, pool, err := maze.Load(mazePath)
	if err != nil {
		m, pool = maze.Generate(maze.GenConfig{
			Width:   cfg.MazeWidth,
			Height:  cfg.MazeHeight,
			Layers:  cfg.MazeLayers,
			CoinMin: cfg.CoinMin,
			CoinMax: cfg.CoinMax,
			Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		})
		sink.Info("maze").Printf("generated a fresh %dx%dx%d maze (no persisted maze_data.json)", cfg.MazeWidth, cfg.MazeHeight, cfg.MazeLayers)
	}

	eng := engine.New(m, pool, nil)

	rl := ratelimit.New(ratelimit.Config{
		Rate:         10,
		Burst:        20,
		RedisEnabled: cfg.RedisEnabled,
		RedisHost:    cfg.RedisHost,
		RedisPort:    cfg.RedisPort,
		RedisDB:      cfg.RedisDB,
	}, sink.Info("ratelimit"))

	chatFile, err := applog.OpenFile(filepath.Join(cfg.DataDir, "chat_log.txt"))
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}

	// Dispatch needs the listener's connection table (via Broadcaster) to
	// send messages, and the listener needs dispatch's callbacks to route
	// inbound frames, so dispatch is built first against a Broadcaster
	// that defers to the listener constructed right after it.
	var listener *transport.Listener
	bc := broadcast.New(listenerTable{get: func() *transport.Listener { return listener }})
	disp := dispatch.New(eng, reg, bc, rl, sink.Info("dispatch"), writerOrNil(chatFile))
	listener = transport.New(cfg.GetWebsocketAddress(), sink.Info("transport"), disp.OnMessage, disp.OnClose)

	trail, err := audit.Open(filepath.Join(cfg.DataDir, "console_audit.db"))
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}

	adminTbl, err := console.LoadAdminTable(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load admin table: %w", err)
	}

	opStore, generatedPassword, qrPath, err := console.LoadOrBootstrap(cfg.DataDir, cfg.ServerName)
	if err != nil {
		return nil, fmt.Errorf("load operator store: %w", err)
	}
	if generatedPassword != "" {
		sink.Info("console").Printf("bootstrapped operator account %q with generated password %q (TOTP enrollment QR: %s); rotate this password after first login", "operator", generatedPassword, qrPath)
	}

	cUI := console.New(os.Stdin, os.Stdout, sink.Info("console"), console.Deps{
		Store:      opStore,
		Admin:      adminTbl,
		Audit:      trail,
		Engine:     eng,
		Registry:   reg,
		Dispatcher: disp,
		Broadcast:  bc,
	})

	cfgView := httpapi.ConfigView{
		ServerName:    cfg.ServerName,
		GameVersion:   cfg.GameVersion,
		WebsocketPort: cfg.WebsocketPort,
		MazeSize:      fmt.Sprintf("%dx%dx%d", cfg.MazeWidth, cfg.MazeHeight, cfg.MazeLayers),
		MaxPlayers:    cfg.MaxPlayers,
		ServerVersion: cfg.ServerVersion,
		MazeWidth:     cfg.MazeWidth,
		MazeHeight:    cfg.MazeHeight,
		MazeLayers:    cfg.MazeLayers,
	}
	httpSrv := httpapi.New(cfg.GetListenAddress(), cfg.WebRoot, cfgView, statusAdapter{listener: listener, disp: disp, reg: reg, eng: eng}, time.Now(), sink.Info("httpapi"))

	loop := tick.New(eng, tickPeriod)

	return &Server{
		cfg:       cfg,
		log:       sink,
		registry:  reg,
		engine:    eng,
		rl:        rl,
		bc:        bc,
		dispatch:  disp,
		listener:  listener,
		httpSrv:   httpSrv,
		tickLoop:  loop,
		auditTrl:  trail,
		adminTbl:  adminTbl,
		opStore:   opStore,
		consoleUI: cUI,
		chatFile:  chatFile,
		logFile:   logFile,
	}, nil
}

// writerOrNil returns f as an io.Writer, or a true nil io.Writer (not a
// non-nil interface wrapping a nil *os.File) when f is nil.
func writerOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

// listenerTable defers to a listener set after construction, breaking the
// broadcast/dispatch/listener construction cycle: dispatch needs a
// broadcast.Table before the listener it will route into exists yet.
type listenerTable struct {
	get func() *transport.Listener
}

func (t listenerTable) Snapshot() []*transport.Connection {
	l := t.get()
	if l == nil {
		return nil
	}
	return l.Snapshot()
}

// Run starts every background worker and blocks until shutdown completes.
// shutdown is closed by the caller (normally on SIGINT/SIGTERM) to begin
// the teardown sequence.
func (s *Server) Run(shutdown <-chan struct{}) error {
	errCh := make(chan error, 2)

	go func() {
		if err := s.listener.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("game socket listener: %w", err)
		}
	}()
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go s.tickLoop.Run()

	consoleShutdown := make(chan struct{})
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.consoleUI.Run(consoleShutdown)
	}()

	backupStop := make(chan struct{})
	go s.runPeriodicBackups(backupStop)

	select {
	case <-shutdown:
	case err := <-errCh:
		s.log.Info("supervisor").Printf("fatal component error, beginning shutdown: %v", err)
	}

	close(backupStop)
	s.shutdownSequence(consoleShutdown, consoleDone)
	return nil
}

// runPeriodicBackups re-saves players.json and maze_data.json every
// backupInterval. Each registry.Save first copies the previous players.json
// into backups/ with a timestamp suffix; maze_data.json is overwritten in
// place with no copy kept. Stops when stop is closed.
func (s *Server) runPeriodicBackups(stop <-chan struct{}) {
	ticker := time.NewTicker(backupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.registry.Save(); err != nil {
				s.log.Warn("supervisor").Printf("periodic backup: players.json: %v", err)
			}
			snap := s.engine.MazeSnapshot()
			if m, pool, err := maze.FromSnapshot(snap); err == nil {
				path := filepath.Join(s.cfg.DataDir, "maze_data.json")
				if err := maze.Save(path, m, pool); err != nil {
					s.log.Warn("supervisor").Printf("periodic backup: maze_data.json: %v", err)
				}
			}
		}
	}
}

// shutdownSequence runs the teardown in its strict order: stop accepting, close
// connections, join/detach workers, stop the tick loop, drain the console,
// then persist durable state.
func (s *Server) shutdownSequence(consoleShutdown chan struct{}, consoleDone <-chan struct{}) {
	deadline := time.Duration(s.cfg.ShutdownTimeoutSecs) * time.Second
	if deadline <= 0 {
		deadline = 3 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	_ = s.listener.Shutdown(ctx)
	_ = s.httpSrv.Shutdown(ctx)

	s.listener.CloseAll(websocket.CloseGoingAway, "server shutting down")

	if !s.listener.WaitClosed(deadline) {
		s.log.Warn("supervisor").Printf("timed out waiting for connections to close; detaching remaining workers")
	}

	s.tickLoop.Stop()

	// Drain the console before persisting so an in-flight operator command
	// cannot race the saves below; detach if it doesn't finish in time.
	close(consoleShutdown)
	drainTimer := time.NewTimer(deadline)
	select {
	case <-consoleDone:
		drainTimer.Stop()
	case <-drainTimer.C:
		s.log.Warn("supervisor").Printf("timed out draining the console; detaching its worker")
	}

	if err := s.registry.Save(); err != nil {
		s.log.Error("supervisor").Printf("failed to persist players.json: %v", err)
	}
	snap := s.engine.MazeSnapshot()
	if m, pool, err := maze.FromSnapshot(snap); err == nil {
		if err := maze.Save(filepath.Join(s.cfg.DataDir, "maze_data.json"), m, pool); err != nil {
			s.log.Error("supervisor").Printf("failed to persist maze_data.json: %v", err)
		}
	}
	if err := s.adminTbl.Save(); err != nil {
		s.log.Error("supervisor").Printf("failed to persist admin_table.json: %v", err)
	}

	if err := s.rl.Close(); err != nil {
		s.log.Warn("supervisor").Printf("error closing rate limiter: %v", err)
	}
	if err := s.auditTrl.Close(); err != nil {
		s.log.Warn("supervisor").Printf("error closing audit trail: %v", err)
	}
	if s.chatFile != nil {
		_ = s.chatFile.Close()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}

	log.Printf("shutdown complete")
}
