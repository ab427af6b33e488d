package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedLogger(verbose bool) (*Logger, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut, diag bytes.Buffer
	l := New(&out, &errOut, &diag, verbose)
	l.now = func() time.Time { return time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC) }
	return l, &out, &errOut, &diag
}

func TestLevelsRouting(t *testing.T) {
	l, out, errOut, diag := fixedLogger(false)

	l.Info("fetched %d films", 3)
	l.Warn("skipping %q", "TBC")
	l.Error("fetch failed: %v", "timeout")
	l.Debug("hidden")

	if !strings.Contains(out.String(), "[INFO]  2025-09-01 06:00:00 fetched 3 films") {
		t.Errorf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(out.String(), `[WARN]  2025-09-01 06:00:00 skipping "TBC"`) {
		t.Errorf("expected warning on stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[ERROR] 2025-09-01 06:00:00 fetch failed: timeout") {
		t.Errorf("unexpected stderr: %q", errOut.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Error("debug should be suppressed when not verbose")
	}

	lines := strings.Split(strings.TrimSpace(diag.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected warn and error in diagnostics, got %q", diag.String())
	}
	if strings.Contains(diag.String(), "[INFO]") {
		t.Error("info lines should not reach diagnostics")
	}
}

func TestDebugWhenVerbose(t *testing.T) {
	l, out, _, _ := fixedLogger(true)
	l.Debug("cache hit %s", "k")
	if !strings.Contains(out.String(), "[DEBUG]") {
		t.Errorf("expected debug output, got %q", out.String())
	}
}

func TestOpenWritesDiagnosticsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cinema_log.txt")
	l, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l.Path() != path {
		t.Errorf("Path() = %q", l.Path())
	}
	l.Warn("bad date %q", "Coming soon")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading diagnostics: %v", err)
	}
	if !strings.Contains(string(data), `bad date "Coming soon"`) {
		t.Errorf("unexpected diagnostics content: %q", data)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	if l.Path() != "" || l.Close() != nil {
		t.Error("Discard logger should have no file")
	}
}
