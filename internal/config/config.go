// Package config assembles runtime settings from defaults, an optional
// YAML file, and a handful of environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alucardeht/futures-mcp/internal/watcher"
)

// GateConfig tunes the stage-advancement gate. The defaults encode the
// standard discipline: some knowledge, 80% of critical assumptions
// validated, critical meaning criticality above 0.7.
type GateConfig struct {
	CriticalCutoff       float64 `yaml:"critical_cutoff"`
	CriticalValidatedMin float64 `yaml:"critical_validated_min"`
	RequireKnowledge     bool    `yaml:"require_knowledge"`
}

type ServerConfig struct {
	SocketPath     string `yaml:"socket_path"`
	MaxConnections int    `yaml:"max_connections"`
}

type Config struct {
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
	Gate     GateConfig     `yaml:"gate"`
	Server   ServerConfig   `yaml:"server"`
	Watcher  watcher.Config `yaml:"watcher"`
}

// Default returns the built-in configuration rooted at ~/.futures-mcp.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".futures-mcp")

	return &Config{
		DataDir:  filepath.Join(baseDir, "data"),
		LogLevel: "info",
		Gate: GateConfig{
			CriticalCutoff:       0.7,
			CriticalValidatedMin: 0.8,
			RequireKnowledge:     true,
		},
		Server: ServerConfig{
			SocketPath:     filepath.Join(baseDir, "futures.sock"),
			MaxConnections: 100,
		},
		Watcher: watcher.DefaultConfig(),
	}
}

// Load builds the effective configuration. path may be empty, in which
// case ~/.futures-mcp/config.yaml is used when present and silently
// skipped when absent; an explicit path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".futures-mcp", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FUTURES_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FUTURES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FUTURES_SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
}

// EnsureDirectories creates the data dir and the socket dir.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(c.Server.SocketPath), 0700)
}
