// Package config handles loading and saving dropdash configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/dropdash/config.yaml
//   - Data:    ~/.local/share/dropdash/ (downloads, exported charts)
//   - State:   ~/.local/state/dropdash/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "dropdash"

// Source kinds.
const (
	SourceAuto   = "auto"
	SourceHTTP   = "http"
	SourceDir    = "dir"
	SourceSQLite = "sqlite"
)

// Defaults mirrored from the upload server and its dashboard.
const (
	DefaultPageSize          = 5
	DefaultRefreshInterval   = 30 * time.Second
	DefaultIndent            = 2
	DefaultStorageLimitBytes = int64(5) * 1024 * 1024 * 1024
	DefaultWarnPercent       = 80.0
	DefaultRetryMax          = 4
	DefaultHTTPTimeout       = 15 * time.Second
	MinRefreshInterval       = time.Second
)

// SourceConfig selects where the forest comes from.
type SourceConfig struct {
	Kind        string `yaml:"kind,omitempty"`         // auto, http, dir, sqlite
	ServerURL   string `yaml:"server_url,omitempty"`   // Base URL of the upload server
	UploadDir   string `yaml:"upload_dir,omitempty"`   // Local upload folder (dir source)
	ClientsFile string `yaml:"clients_file,omitempty"` // clients.json with labels (dir source)
	DBPath      string `yaml:"db_path,omitempty"`      // Blob index database (sqlite source)
}

// UIConfig holds dashboard preferences.
type UIConfig struct {
	PageSize        int           `yaml:"page_size,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
	MaxDepth        int           `yaml:"max_depth,omitempty"` // 0 = unbounded
	Indent          int           `yaml:"indent,omitempty"`
	DownloadDir     string        `yaml:"download_dir,omitempty"`
}

// StorageConfig controls the storage usage panel.
type StorageConfig struct {
	LimitBytes  int64   `yaml:"limit_bytes,omitempty"`
	WarnPercent float64 `yaml:"warn_percent,omitempty"`
}

// HTTPConfig tunes the server client.
type HTTPConfig struct {
	RetryMax int           `yaml:"retry_max,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source,omitempty"`
	UI      UIConfig      `yaml:"ui,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	HTTP    HTTPConfig    `yaml:"http,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Kind:      SourceAuto,
			ServerURL: "http://localhost:5000",
		},
		UI: UIConfig{
			PageSize:        DefaultPageSize,
			RefreshInterval: DefaultRefreshInterval,
			Indent:          DefaultIndent,
			DownloadDir:     filepath.Join(DataDir(), "downloads"),
		},
		Storage: StorageConfig{
			LimitBytes:  DefaultStorageLimitBytes,
			WarnPercent: DefaultWarnPercent,
		},
		HTTP: HTTPConfig{
			RetryMax: DefaultRetryMax,
			Timeout:  DefaultHTTPTimeout,
		},
	}
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks values that cannot be defaulted and clamps the rest.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "":
		c.Source.Kind = SourceAuto
	case SourceAuto, SourceHTTP, SourceDir, SourceSQLite:
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, c.Source.Kind)
	}
	if c.Source.Kind == SourceHTTP {
		u, err := url.Parse(c.Source.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: server_url %q is not an absolute URL", ErrInvalid, c.Source.ServerURL)
		}
	}
	if c.Source.Kind == SourceDir && c.Source.UploadDir == "" {
		return fmt.Errorf("%w: source kind dir requires upload_dir", ErrInvalid)
	}
	if c.Source.Kind == SourceSQLite && c.Source.DBPath == "" {
		return fmt.Errorf("%w: source kind sqlite requires db_path", ErrInvalid)
	}

	if c.UI.PageSize <= 0 {
		c.UI.PageSize = DefaultPageSize
	}
	if c.UI.RefreshInterval <= 0 {
		c.UI.RefreshInterval = DefaultRefreshInterval
	} else if c.UI.RefreshInterval < MinRefreshInterval {
		c.UI.RefreshInterval = MinRefreshInterval
	}
	if c.UI.MaxDepth < 0 {
		c.UI.MaxDepth = 0
	}
	if c.UI.Indent <= 0 {
		c.UI.Indent = DefaultIndent
	}
	if c.Storage.LimitBytes <= 0 {
		c.Storage.LimitBytes = DefaultStorageLimitBytes
	}
	if c.Storage.WarnPercent <= 0 || c.Storage.WarnPercent > 100 {
		c.Storage.WarnPercent = DefaultWarnPercent
	}
	if c.HTTP.RetryMax < 0 {
		c.HTTP.RetryMax = 0
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	return nil
}

// ConfigDir returns the XDG config directory for dropdash.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for dropdash.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// StateDir returns the XDG state directory for dropdash.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source.UploadDir = expandHome(cfg.Source.UploadDir)
	cfg.Source.ClientsFile = expandHome(cfg.Source.ClientsFile)
	cfg.Source.DBPath = expandHome(cfg.Source.DBPath)
	cfg.UI.DownloadDir = expandHome(cfg.UI.DownloadDir)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
