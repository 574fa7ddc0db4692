// Package httpapi implements the HTTP surface: a static file server for
// the web client plus two small JSON endpoints, /api/config and
// /api/status, on a plain net/http ServeMux.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// StatusProvider supplies the live counters /api/status reports. The
// dispatcher and registry both satisfy slices of this through small
// adapter closures built by the supervisor.
type StatusProvider interface {
	ConnectedPlayers() int
	OnlinePlayers() int
	TotalPlayers() int
	RemainingCoins() int
	FinishedCount() int
}

// ConfigView is the subset of configuration considered public: safe to
// expose to any client fetching /api/config, deliberately excluding data
// directories, TLS material, and Redis connection details.
type ConfigView struct {
	ServerName    string `json:"serverName"`
	GameVersion   string `json:"gameVersion"`
	WebsocketPort int    `json:"websocketPort"`
	MazeSize      string `json:"mazeSize"`
	MaxPlayers    int    `json:"maxPlayers"`

	ServerVersion string `json:"serverVersion"`
	MazeWidth     int    `json:"mazeWidth"`
	MazeHeight    int    `json:"mazeHeight"`
	MazeLayers    int    `json:"mazeLayers"`
}

// StatusView is the live JSON shape of /api/status.
type StatusView struct {
	Status           string `json:"status"`
	ConnectedPlayers int    `json:"connectedPlayers"`
	TotalPlayers     int    `json:"totalPlayers"`
	OnlinePlayers    int    `json:"onlinePlayers"`
	Uptime           string `json:"uptime"`
	ServerTime       string `json:"serverTime"`

	RemainingCoins int `json:"remainingCoins"`
	FinishedCount  int `json:"finishedCount"`
}

// Server wraps an http.Server serving the static web root plus the two
// JSON endpoints.
type Server struct {
	httpSrv *http.Server
	log     *log.Logger
}

// New builds the HTTP surface. webRoot is served at "/"; any request whose
// path has a ".." segment, or whose cleaned path escapes webRoot, is
// rejected with 403 before touching the filesystem.
func New(addr, webRoot string, cfgView ConfigView, status StatusProvider, startedAt time.Time, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	fileHandler := guardedFileServer(webRoot, logger)
	mux.Handle("/", fileHandler)

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cfgView)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, StatusView{
			Status:           "ok",
			ConnectedPlayers: status.ConnectedPlayers(),
			TotalPlayers:     status.TotalPlayers(),
			OnlinePlayers:    status.OnlinePlayers(),
			Uptime:           time.Since(startedAt).Round(time.Second).String(),
			ServerTime:       time.Now().UTC().Format(time.RFC3339),
			RemainingCoins:   status.RemainingCoins(),
			FinishedCount:    status.FinishedCount(),
		})
	})

	return &Server{
		httpSrv: &http.Server{Addr: addr, Handler: rejectTraversal(mux, logger)},
		log:     logger,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// guardedFileServer serves files under root, rejecting any request path
// that, once cleaned and joined to root, does not stay within root. This
// defends against "../" traversal regardless of how the client encodes it.
func guardedFileServer(root string, logger *log.Logger) http.Handler {
	fs := http.FileServer(http.Dir(root))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleaned := filepath.Clean(r.URL.Path)
		full := filepath.Join(absRoot, cleaned)
		rel, err := filepath.Rel(absRoot, full)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if logger != nil {
				logger.Printf("httpapi: rejected path-traversal attempt: %s", r.URL.Path)
			}
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// rejectTraversal answers 403 to any request whose decoded path has a ".."
// segment. It wraps the whole mux because the mux cleans such a path and
// redirects it before any registered handler, guardedFileServer included,
// would see it.
func rejectTraversal(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains("/"+r.URL.Path+"/", "/../") {
			if logger != nil {
				logger.Printf("httpapi: rejected path-traversal attempt: %s", r.URL.Path)
			}
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe blocks, serving until Shutdown is called or a fatal error
// occurs.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
