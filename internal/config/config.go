// Package config resolves the terminal runtime's configuration from
// environment variables, with an optional YAML overlay for local dev.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the daemon needs at startup.
type Config struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Workspace        string `yaml:"workspace"`
	MaxSessions      int    `yaml:"max_sessions"`
	ScrollbackLines  int    `yaml:"scrollback_lines"`
	EditorRoot       string `yaml:"editor_root"`
	DefaultShell     string `yaml:"default_shell"`
	ExecWaitDefault  time.Duration
	IdleSweepPeriod  time.Duration
	SessionIdleAfter time.Duration
}

const (
	defaultCols            = 120
	defaultRows            = 40
	defaultScrollbackLines = 10000
	defaultMaxSessions     = 10
	defaultExecWaitMs      = 30000
)

// DefaultCols and DefaultRows are the defaults for newly created sessions.
const (
	DefaultCols = defaultCols
	DefaultRows = defaultRows
)

// Load builds a Config from environment variables, optionally overlaid on
// top of a YAML file's defaults (local-dev convenience; env always wins).
// Missing values fall back to built-in defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Host:             "127.0.0.1",
		Port:             7717,
		Workspace:        defaultWorkspace(),
		MaxSessions:      defaultMaxSessions,
		ScrollbackLines:  defaultScrollbackLines,
		EditorRoot:       defaultWorkspace(),
		DefaultShell:     defaultShell(),
		ExecWaitDefault:  defaultExecWaitMs * time.Millisecond,
		IdleSweepPeriod:  30 * time.Second,
		SessionIdleAfter: 2 * time.Second,
	}

	if path := os.Getenv("TERMINAL_CONFIG_FILE"); path != "" {
		if err := applyYAMLOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("load config overlay: %w", err)
		}
	}

	if v := os.Getenv("TERMINAL_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TERMINAL_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TERMINAL_PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("TERMINAL_WORKSPACE"); v != "" {
		cfg.Workspace = v
		if os.Getenv("TERMINAL_EDITOR_ROOT") == "" {
			cfg.EditorRoot = v
		}
	}
	if v := os.Getenv("TERMINAL_MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TERMINAL_MAX_SESSIONS: %w", err)
		}
		cfg.MaxSessions = n
	}
	if v := os.Getenv("TERMINAL_SCROLLBACK_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TERMINAL_SCROLLBACK_LINES: %w", err)
		}
		cfg.ScrollbackLines = n
	}
	if v := os.Getenv("TERMINAL_EDITOR_ROOT"); v != "" {
		cfg.EditorRoot = v
	}

	return cfg, nil
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// defaultWorkspace falls back to the current directory when the home
// directory can't be resolved.
func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Join(home, "terminal-runtime", "workspace")
}

// defaultShell consults SHELL, falling back to the platform's standard
// POSIX shell path
func defaultShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

// Addr returns the host:port the HTTP server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
