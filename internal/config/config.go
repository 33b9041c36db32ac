package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "weekplan/internal/log"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the host bridge.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the host bridge.
	Listen string `yaml:"listen" json:"listen"`

	// ServerURL is the base URL of the persistence collaborator.
	ServerURL string `yaml:"server_url" json:"server_url"`

	// Timezone is the IANA zone used to decide the current week.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron reloads every open schedule on this cron schedule.
	// Empty disables periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ClickSuppression is how long a click after a drag release is ignored.
	ClickSuppression time.Duration `yaml:"click_suppression" json:"click_suppression"`

	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// RateLimit caps requests per second to the collaborator, per process.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DurationOptions are the palette durations offered to the user, in minutes.
	DurationOptions []int `yaml:"duration_options" json:"duration_options"`

	// DefaultDuration is used for create gestures that carry no duration.
	DefaultDuration int `yaml:"default_duration" json:"default_duration"`

	// QuickTaskMinutes is the fixed length of a quick task.
	QuickTaskMinutes int `yaml:"quick_task_minutes" json:"quick_task_minutes"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultDurations = []int{30, 45, 60, 90, 120, 180, 270, 360}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		ServerURL:        "http://127.0.0.1:8000",
		Timezone:         "Local",
		RefreshCron:      "*/5 * * * *",
		ClickSuppression: 300 * time.Millisecond,
		RequestTimeout:   15 * time.Second,
		RateLimit:        5,
		RateBurst:        5,
		LogLevel:         "info",
		DurationOptions:  append([]int(nil), defaultDurations...),
		DefaultDuration:  60,
		QuickTaskMinutes: 60,
		BasicAuth:        nil,
	}
}

// Normalize repairs zero and out-of-range values in place.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:8000"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)
	if c.ClickSuppression <= 0 {
		c.ClickSuppression = 300 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = "info"
	}

	// Keep positive, de-duplicated, sorted durations.
	seen := map[int]bool{}
	opts := c.DurationOptions[:0:0]
	for _, d := range c.DurationOptions {
		if d > 0 && !seen[d] {
			seen[d] = true
			opts = append(opts, d)
		}
	}
	sort.Ints(opts)
	if len(opts) == 0 {
		opts = append(opts, defaultDurations...)
	}
	c.DurationOptions = opts

	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 60
	}
	if c.QuickTaskMinutes <= 0 {
		c.QuickTaskMinutes = 60
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url %q must be an http(s) URL", c.ServerURL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. "Local" means the host's zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads the config at path. A missing file is not an error: the
// defaults are written there (0600) and returned, so a first run leaves an
// editable file behind.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg := DefaultConfig()
		appLog.Info("writing default config", "path", path)
		// The defaults are still usable when the write fails.
		return cfg, Save(path, cfg)
	case err != nil:
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and normalizes a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save normalizes cfg and replaces path with it. Watchers never observe a
// half-written file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFileAtomic(path, data, 0o600)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".weekplan-config-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), werr)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
