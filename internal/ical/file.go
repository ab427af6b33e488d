package ical

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/spf13/afero"
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is the output file for a cinema id, e.g. "wtw-st-austell.ics".
func FileName(sourceID string) string {
	slug := strings.ToLower(unidecode.Unidecode(sourceID))
	slug = strings.Trim(nonSlugRe.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		slug = "cinema"
	}
	return "wtw-" + slug + ".ics"
}

// WriteFile replaces path with data via a temp file and rename. It reports
// false without touching the file when the content is already identical.
func WriteFile(fs afero.Fs, path string, data []byte) (bool, error) {
	existing, err := afero.ReadFile(fs, path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return false, fmt.Errorf("replacing %s: %w", path, err)
	}
	return true, nil
}
