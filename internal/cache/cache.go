package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// CacheLoadError means the persisted cache could not be used. Load still
// returns an empty, usable store alongside it.
type CacheLoadError struct {
	Path string
	Err  error
}

func (e *CacheLoadError) Error() string {
	return fmt.Sprintf("loading cache %s: %v", e.Path, e.Err)
}

func (e *CacheLoadError) Unwrap() error { return e.Err }

// FetchFunc fetches fresh metadata for a key. It may return a partial record.
type FetchFunc func(ctx context.Context, key string) (FilmMetadata, error)

// Store holds the film metadata for one run. The in-memory map is the source
// of truth; Save writes it back once, wholesale.
type Store struct {
	fs      afero.Fs
	path    string
	entries map[string]FilmMetadata
	now     func() time.Time
}

// Load reads the cache file at path. A missing file is an empty cache.
func Load(fs afero.Fs, path string) (*Store, error) {
	s := &Store{
		fs:      fs,
		path:    path,
		entries: make(map[string]FilmMetadata),
		now:     time.Now,
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, &CacheLoadError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return s, nil
	}

	var raw map[string]FilmMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, &CacheLoadError{Path: path, Err: err}
	}
	for k, m := range raw {
		if m.Key == "" {
			m.Key = k
		}
		s.entries[k] = m
	}
	return s, nil
}

// SetClock replaces time.Now. Freshness always follows the wall clock in
// real runs; --today only moves date inference.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Path() string { return s.path }

func (s *Store) Len() int { return len(s.entries) }

func (s *Store) Get(key string) (FilmMetadata, bool) {
	m, ok := s.entries[key]
	return m, ok
}

// Put stores m under m.Key, replacing any previous record.
func (s *Store) Put(m FilmMetadata) {
	s.entries[m.Key] = m
}

// Fresh reports whether m is within window of now. A non-positive window
// treats everything as stale.
func (s *Store) Fresh(m FilmMetadata, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return s.now().Sub(m.FetchedAt) <= window
}

// GetOrFetch returns the cached record for key when it is fresh. Otherwise it
// calls fetch; a successful result replaces the cached record entirely, while a
// failure leaves the cache untouched and yields a record carrying only the key.
func (s *Store) GetOrFetch(ctx context.Context, key string, fetch FetchFunc, window time.Duration) (FilmMetadata, Outcome, error) {
	if m, ok := s.entries[key]; ok && s.Fresh(m, window) {
		return m, Hit, nil
	}

	m, err := fetch(ctx, key)
	if err != nil {
		return FilmMetadata{Key: key}, Failed, err
	}
	m.Key = key
	m.FetchedAt = s.now()
	s.entries[key] = m
	return m, Fetched, nil
}

// Stale counts entries older than window.
func (s *Store) Stale(window time.Duration) int {
	n := 0
	for _, m := range s.entries {
		if !s.Fresh(m, window) {
			n++
		}
	}
	return n
}

// Prune drops entries older than window and returns how many went.
func (s *Store) Prune(window time.Duration) int {
	n := 0
	for k, m := range s.entries {
		if !s.Fresh(m, window) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Keys returns the cached keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save overwrites the cache file with the current map via a temp file and rename.
func (s *Store) Save() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}
