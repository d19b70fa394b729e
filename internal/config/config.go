package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abelbrown/feedview/internal/fetch"
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendParse  = "parse"
)

// Config is the persistent application configuration
type Config struct {
	// Backend selects the item store: "sqlite" or "parse".
	Backend string `json:"backend"`

	// DBPath is the SQLite database used by the sqlite backend.
	DBPath string `json:"db_path"`

	Parse ParseConfig `json:"parse"`
	Feed  FeedConfig  `json:"feed"`

	// Sources are the RSS feeds imported into the SQLite store.
	Sources []fetch.Source `json:"sources"`
}

// ParseConfig holds the Parse Server connection.
type ParseConfig struct {
	ServerURL     string  `json:"server_url"`
	ApplicationID string  `json:"application_id"`
	RESTKey       string  `json:"rest_key,omitempty"`
	SessionToken  string  `json:"session_token,omitempty"`
	ClassName     string  `json:"class_name"`
	RatePerSecond float64 `json:"rate_per_second"` // 0 disables client-side limiting
}

// FeedConfig holds loader and list preferences.
type FeedConfig struct {
	PageSize        int `json:"page_size"`
	ScrollThreshold int `json:"scroll_threshold"` // rows from the end that trigger the next page
	FetchTimeoutSec int `json:"fetch_timeout_sec"`
}

// FetchTimeout returns the per-page fetch bound.
func (f FeedConfig) FetchTimeout() time.Duration {
	return time.Duration(f.FetchTimeoutSec) * time.Second
}

// Dir returns ~/.feedview.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".feedview")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSQLite,
		DBPath:  filepath.Join(Dir(), "feedview.db"),
		Parse: ParseConfig{
			ClassName:     "Post",
			RatePerSecond: 5,
		},
		Feed: FeedConfig{
			PageSize:        20,
			ScrollThreshold: 3,
			FetchTimeoutSec: 30,
		},
		Sources: fetch.DefaultSources(),
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads the config from ConfigPath.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields the defaults.
// Environment overrides are applied either way.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()
	cfg.normalize()
	return cfg, nil
}

// Save writes config to ConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // holds the REST key
}

// AutoPopulateFromEnv applies PARSE_* and FEEDVIEW_DB overrides. Setting
// PARSE_SERVER_URL switches the backend to parse.
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("PARSE_SERVER_URL"); v != "" {
		c.Parse.ServerURL = v
		c.Backend = BackendParse
	}
	if v := os.Getenv("PARSE_APPLICATION_ID"); v != "" {
		c.Parse.ApplicationID = v
	}
	if v := os.Getenv("PARSE_REST_API_KEY"); v != "" {
		c.Parse.RESTKey = v
	}
	if v := os.Getenv("FEEDVIEW_DB"); v != "" {
		c.DBPath = v
	}
}

// LoadKeysFromFile reads `export KEY=value` lines (like keys.sh) for the
// Parse credentials.
func (c *Config) LoadKeysFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "PARSE_SERVER_URL":
			c.Parse.ServerURL = value
			c.Backend = BackendParse
		case "PARSE_APPLICATION_ID":
			c.Parse.ApplicationID = value
		case "PARSE_REST_API_KEY":
			c.Parse.RESTKey = value
		}
	}

	return nil
}

// Validate reports a config the selected backend cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("sqlite backend needs db_path")
		}
	case BackendParse:
		if c.Parse.ServerURL == "" || c.Parse.ApplicationID == "" {
			return fmt.Errorf("parse backend needs server_url and application_id")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// normalize fills zero values left by a partial config file.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.Feed.PageSize <= 0 {
		c.Feed.PageSize = def.Feed.PageSize
	}
	if c.Feed.ScrollThreshold < 0 {
		c.Feed.ScrollThreshold = def.Feed.ScrollThreshold
	}
	if c.Feed.FetchTimeoutSec <= 0 {
		c.Feed.FetchTimeoutSec = def.Feed.FetchTimeoutSec
	}
	if c.Parse.ClassName == "" {
		c.Parse.ClassName = def.Parse.ClassName
	}
}
