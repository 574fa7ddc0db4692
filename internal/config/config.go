// Package config loads the maze server's configuration: built-in defaults,
// an optional bootstrap .env file, a persisted config.json under the data
// directory, and finally CLI flags, in that order of increasing priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the maze server.
type Config struct {
	ServerName    string `json:"serverName"`
	ServerVersion string `json:"serverVersion"`
	GameVersion   string `json:"gameVersion"`

	HTTPPort      int `json:"httpPort"`
	WebsocketPort int `json:"websocketPort"`

	DataDir string `json:"-"`
	WebRoot string `json:"-"`

	NoConsoleLog bool   `json:"-"`
	NoFileLog    bool   `json:"-"`
	LogLevel     string `json:"logLevel"`

	MaxPlayers          int `json:"maxPlayers"`
	ShutdownTimeoutSecs int `json:"shutdownTimeoutSecs"`

	MazeWidth  int `json:"mazeWidth"`
	MazeHeight int `json:"mazeHeight"`
	MazeLayers int `json:"mazeLayers"`
	CoinMin    int `json:"coinMin"`
	CoinMax    int `json:"coinMax"`

	RedisEnabled bool   `json:"redisEnabled"`
	RedisHost    string `json:"redisHost"`
	RedisPort    int    `json:"redisPort"`
	RedisDB      int    `json:"redisDB"`

	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

var defaultConfig = Config{
	ServerName:          "Maze Server",
	ServerVersion:       "1.0.0",
	GameVersion:         "1.0.0",
	HTTPPort:            8080,
	DataDir:             "./Data",
	WebRoot:             "./web",
	LogLevel:            "info",
	MaxPlayers:          50,
	ShutdownTimeoutSecs: 3,
	MazeWidth:           50,
	MazeHeight:          50,
	MazeLayers:          7,
	CoinMin:             100,
	CoinMax:             120,
	RedisEnabled:        false,
	RedisHost:           "localhost",
	RedisPort:           6379,
	RedisDB:             0,
	TLSEnabled:          false,
	TLSCertFile:         "certs/server.crt",
	TLSKeyFile:          "certs/server.key",
}

// Load parses args (normally os.Args[1:]) and returns the resolved
// configuration, or (nil, flag.ErrHelp) if -h/--help was requested.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("mazeserver", flag.ContinueOnError)

	cfg := defaultConfig

	var port int
	var dataDir, webRoot, logLevel string
	var noConsoleLog, noFileLog bool

	fs.IntVar(&port, "p", cfg.HTTPPort, "HTTP port")
	fs.IntVar(&port, "port", cfg.HTTPPort, "HTTP port")
	fs.StringVar(&dataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&dataDir, "data", cfg.DataDir, "data directory")
	fs.StringVar(&webRoot, "w", cfg.WebRoot, "web root directory")
	fs.StringVar(&webRoot, "web", cfg.WebRoot, "web root directory")
	fs.BoolVar(&noConsoleLog, "no-console-log", false, "disable console log output")
	fs.BoolVar(&noFileLog, "no-file-log", false, "disable file log output")
	fs.StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug|info|warning|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Layer: .env (if present) under data dir, then config.json, then flags.
	envPath := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if env, err := godotenv.Read(envPath); err == nil {
			applyEnv(&cfg, env)
		}
	}

	cfgPath := filepath.Join(dataDir, "config.json")
	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	} else if os.IsNotExist(err) {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(dataDir, 0o755); err == nil {
			_ = writeDefaultConfigFile(cfgPath, cfg)
		}
	}

	// CLI flags always win.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p", "port":
			cfg.HTTPPort = port
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})
	cfg.DataDir = dataDir
	cfg.WebRoot = webRoot
	cfg.NoConsoleLog = noConsoleLog
	cfg.NoFileLog = noFileLog
	cfg.WebsocketPort = cfg.HTTPPort + 1

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, env map[string]string) {
	if v, ok := env["MAX_PLAYERS"]; ok {
		fmt.Sscanf(v, "%d", &cfg.MaxPlayers)
	}
	if v, ok := env["REDIS_ENABLED"]; ok {
		cfg.RedisEnabled = v == "true" || v == "1"
	}
	if v, ok := env["REDIS_HOST"]; ok {
		cfg.RedisHost = v
	}
	if v, ok := env["REDIS_PORT"]; ok {
		fmt.Sscanf(v, "%d", &cfg.RedisPort)
	}
	if v, ok := env["SERVER_NAME"]; ok {
		cfg.ServerName = v
	}
}

func writeDefaultConfigFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65534 {
		return fmt.Errorf("invalid port: must be between 1 and 65534")
	}
	if cfg.MaxPlayers < 1 {
		return fmt.Errorf("max players must be at least 1")
	}
	if cfg.MazeWidth < 5 || cfg.MazeHeight < 5 || cfg.MazeLayers < 1 {
		return fmt.Errorf("maze dimensions too small")
	}
	if cfg.CoinMin < 1 || cfg.CoinMax < cfg.CoinMin {
		return fmt.Errorf("invalid coin pool bounds")
	}
	return nil
}

// GetListenAddress returns the HTTP listen address (host:port).
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetWebsocketAddress returns the game socket listen address (host:port).
func (c *Config) GetWebsocketAddress() string {
	return fmt.Sprintf(":%d", c.WebsocketPort)
}
