package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the daemon configuration.
type Config struct {
	ListenAddr      string `json:"listen_addr"`       // default "127.0.0.1:8047"
	DataDir         string `json:"data_dir"`          // default "~/.issueboard"
	DBPath          string `json:"db_path"`           // default "{data_dir}/board.db"
	GitHubAPIURL    string `json:"github_api_url"`    // default "https://api.github.com"
	FetchTimeoutSec int    `json:"fetch_timeout_sec"` // default 30
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".issueboard")
	return &Config{
		ListenAddr:      "127.0.0.1:8047",
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "board.db"),
		GitHubAPIURL:    "https://api.github.com",
		FetchTimeoutSec: 30,
	}
}

// FetchTimeout returns the GitHub HTTP client timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// configPath returns the path to the config file.
func configPath(cfg *Config) string {
	return filepath.Join(cfg.DataDir, "config.json")
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Load reads configuration from ~/.issueboard/config.json.
// If the file does not exist, it returns the default configuration.
func Load() (*Config, error) {
	return LoadFrom(configPath(DefaultConfig()))
}

// LoadFrom reads configuration from path, layered over the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// A data_dir override without db_path moves the database along with it.
	cfg.DBPath = ""
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.DBPath = expandHome(cfg.DBPath)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "board.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that the Config contains valid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}

	_, portStr, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", c.ListenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in listen_addr %q: %w", c.ListenAddr, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", port)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	if c.GitHubAPIURL != "" {
		u, err := url.Parse(c.GitHubAPIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid github_api_url %q", c.GitHubAPIURL)
		}
	}

	if c.FetchTimeoutSec < 0 {
		return fmt.Errorf("fetch_timeout_sec must not be negative")
	}

	return nil
}

// Save writes the configuration to {data_dir}/config.json.
func Save(cfg *Config) error {
	if err := EnsureDataDir(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath(cfg), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	return nil
}
