package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "wtwcal"

// Source is one cinema: the unit that gets its own calendar file.
type Source struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "html" or "rss"
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// Alarm is a reminder rule attached to every event.
type Alarm struct {
	DaysBefore  int    `yaml:"days_before"`
	Description string `yaml:"description"`
	Time        string `yaml:"time,omitempty"` // HH:MM, overrides notification_time
}

type Notifications struct {
	Enabled bool    `yaml:"enabled"`
	Alarms  []Alarm `yaml:"alarms"`
}

type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	Retries           int     `yaml:"retries"`
	RetryDelay        string  `yaml:"retry_delay"`
	RetryMultiplier   float64 `yaml:"retry_multiplier"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent"`
}

// Config is validated once by Load and not modified afterwards.
type Config struct {
	CacheExpiry      string        `yaml:"cache_expiry"`
	DateTolerance    string        `yaml:"date_tolerance"`
	NotificationTime string        `yaml:"notification_time"`
	Notifications    Notifications `yaml:"notifications"`
	Cinemas          []Source      `yaml:"cinemas"`
	HTTP             HTTPConfig    `yaml:"http"`
	OutputDir        string        `yaml:"output_dir"`
	CachePath        string        `yaml:"cache_path"`
	HistoryPath      string        `yaml:"history_path"`
	LogPath          string        `yaml:"log_path"`
	MetricsTextfile  string        `yaml:"metrics_textfile"`
}

// ParseDuration accepts Go durations plus an "Nd" whole-day form.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func (c *Config) CacheExpiryDuration() time.Duration {
	d, err := ParseDuration(c.CacheExpiry)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

func (c *Config) DateToleranceDuration() time.Duration {
	d, err := ParseDuration(c.DateTolerance)
	if err != nil {
		return 60 * 24 * time.Hour
	}
	return d
}

func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

func (c *Config) RetryDelay() time.Duration {
	d, err := time.ParseDuration(c.HTTP.RetryDelay)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *Config) EnabledCinemas() []Source {
	var out []Source
	for _, s := range c.Cinemas {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) CinemaNames() []string {
	var names []string
	for _, s := range c.EnabledCinemas() {
		names = append(names, s.Name)
	}
	return names
}

// Cinema looks a source up by id.
func (c *Config) Cinema(id string) (Source, bool) {
	for _, s := range c.Cinemas {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// ActiveAlarms returns the reminder rules in effect, with descriptions and
// times filled in. Nil when notifications are off.
func (c *Config) ActiveAlarms() []Alarm {
	if !c.Notifications.Enabled {
		return nil
	}
	out := make([]Alarm, 0, len(c.Notifications.Alarms))
	for _, a := range c.Notifications.Alarms {
		if a.Description == "" {
			a.Description = "Film Release Reminder"
		}
		if a.Time == "" {
			a.Time = c.NotificationTime
		}
		out = append(out, a)
	}
	return out
}

// ParseClock splits an HH:MM string.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(m) != 2 || len(h) < 1 || len(h) > 2 {
		return 0, 0, fmt.Errorf("time %q: must be HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q: hour must be 00-23", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: minute must be 00-59", s)
	}
	return hour, minute, nil
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func (c *Config) ResolvedCachePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return filepath.Join(xdg.CacheHome, appName, "film_cache.json")
}

func (c *Config) ResolvedHistoryPath() string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return filepath.Join(xdg.DataHome, appName, "history.db")
}

func (c *Config) ResolvedLogPath() string {
	if c.LogPath != "" {
		return c.LogPath
	}
	return filepath.Join(xdg.StateHome, appName, "cinema_log.txt")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default location), layering it over
// the embedded defaults, and validates the result.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: the embedded defaults still apply
			_ = writeDefaults(path)
			return defaults, Validate(defaults)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := *defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}
