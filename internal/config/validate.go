package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const maxDaysBefore = 365

// Validate checks everything that can be checked without touching the network.
func Validate(cfg *Config) error {
	var errs []error

	validTypes := map[string]bool{"html": true, "rss": true}
	seen := map[string]bool{}
	enabled := 0
	for i, s := range cfg.Cinemas {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("cinema %d: id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("cinema %q: duplicate id", s.ID))
		}
		seen[s.ID] = true
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("cinema %q: name is required", s.ID))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("cinema %q: url is required", s.ID))
		} else if u, err := url.Parse(s.URL); err != nil {
			errs = append(errs, fmt.Errorf("cinema %q: invalid url: %w", s.ID, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("cinema %q: url scheme must be http or https, got %q", s.ID, u.Scheme))
		}
		if !validTypes[s.Type] {
			errs = append(errs, fmt.Errorf("cinema %q: unknown type %q (valid: html, rss)", s.ID, s.Type))
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("at least one cinema must be enabled"))
	}

	if _, _, err := ParseClock(cfg.NotificationTime); err != nil {
		errs = append(errs, fmt.Errorf("notification_time: %w", err))
	}
	for i, a := range cfg.Notifications.Alarms {
		if a.DaysBefore < 0 || a.DaysBefore > maxDaysBefore {
			errs = append(errs, fmt.Errorf("alarm %d: days_before must be between 0 and %d, got %d", i, maxDaysBefore, a.DaysBefore))
		}
		if a.Time != "" {
			if _, _, err := ParseClock(a.Time); err != nil {
				errs = append(errs, fmt.Errorf("alarm %d: %w", i, err))
			}
		}
	}

	if d, err := ParseDuration(cfg.CacheExpiry); err != nil {
		errs = append(errs, fmt.Errorf("cache_expiry: %w", err))
	} else if d < 24*time.Hour {
		errs = append(errs, fmt.Errorf("cache_expiry must be at least 1d, got %s", cfg.CacheExpiry))
	}
	if d, err := ParseDuration(cfg.DateTolerance); err != nil {
		errs = append(errs, fmt.Errorf("date_tolerance: %w", err))
	} else if d < 0 || d > 183*24*time.Hour {
		errs = append(errs, fmt.Errorf("date_tolerance must be between 0d and 183d, got %s", cfg.DateTolerance))
	}

	if _, err := time.ParseDuration(cfg.HTTP.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("http.timeout: %w", err))
	}
	if _, err := time.ParseDuration(cfg.HTTP.RetryDelay); err != nil {
		errs = append(errs, fmt.Errorf("http.retry_delay: %w", err))
	}
	if cfg.HTTP.Retries < 1 {
		errs = append(errs, fmt.Errorf("http.retries must be at least 1, got %d", cfg.HTTP.Retries))
	}
	if cfg.HTTP.RetryMultiplier < 1 {
		errs = append(errs, fmt.Errorf("http.retry_multiplier must be at least 1, got %g", cfg.HTTP.RetryMultiplier))
	}
	if cfg.HTTP.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("http.requests_per_second must be positive, got %g", cfg.HTTP.RequestsPerSecond))
	}

	if cfg.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}

	return errors.Join(errs...)
}
