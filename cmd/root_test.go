package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/aggregate"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/dates"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/history"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/ical"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/listing"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/logging"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/metrics"
	"github.com/spf13/afero"
)

func TestReferenceDate(t *testing.T) {
	now := time.Date(2025, 9, 1, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  string
		err   bool
	}{
		{"", "2025-09-01", false},
		{"2025-12-25", "2025-12-25", false},
		{"25/12/2025", "", true},
		{"2025-02-30", "", true},
	}
	for _, tt := range tests {
		got, err := referenceDate(tt.input, now)
		if tt.err {
			if err == nil {
				t.Errorf("referenceDate(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("referenceDate(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("referenceDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{7 * 24 * time.Hour, "7d"},
		{36 * time.Hour, "1d"},
		{5 * time.Hour, "5h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeFetcher map[string][]listing.Entry

func (f fakeFetcher) Fetch(_ context.Context, src config.Source) ([]listing.Entry, error) {
	entries, ok := f[src.ID]
	if !ok {
		return nil, &listing.FetchError{URL: src.URL, Err: errors.New("connection refused")}
	}
	return entries, nil
}

func testPipeline(t *testing.T, fetcher listing.Fetcher, ledger *history.Ledger) (*pipeline, afero.Fs) {
	t.Helper()
	today, _ := dates.New(2025, time.September, 1)
	fs := afero.NewMemMapFs()
	return &pipeline{
		fetcher: fetcher,
		agg: &aggregate.Aggregator{
			Normalizer: dates.NewNormalizer(today, dates.DefaultTolerance),
		},
		ser:    ical.NewSerializer(nil),
		fs:     fs,
		outDir: "/out",
		ledger: ledger,
		log:    logging.Discard(),
		sink:   metrics.NewNoopSink(),
		now:    func() time.Time { return time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC) },
	}, fs
}

var testSources = []config.Source{
	{ID: "st-austell", Name: "St Austell", Type: "html", URL: "https://wtwcinemas.co.uk/st-austell/coming-soon/", Enabled: true},
	{ID: "truro", Name: "Truro", Type: "html", URL: "https://wtwcinemas.co.uk/truro/coming-soon/", Enabled: true},
}

func TestPipelineIsolatesFailingCinema(t *testing.T) {
	ledger, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	fetcher := fakeFetcher{
		"st-austell": {
			{Title: "Tron: Ares", RawDate: "Expected: 10 October 2025", DetailURL: "https://wtwcinemas.co.uk/film/tron-ares/", SourceID: "st-austell"},
			{Title: "Mystery Film", RawDate: "Coming soon", SourceID: "st-austell"},
			{Title: "Spring Film", RawDate: "Expected at WTW Cinemas from the 3rd March", SourceID: "st-austell"},
		},
	}
	p, fs := testPipeline(t, fetcher, ledger)

	summary := p.run(context.Background(), testSources)
	if summary.Written() != 1 {
		t.Fatalf("expected 1 calendar written, got %d", summary.Written())
	}
	if summary.Sources[1].Err == nil {
		t.Error("expected truro to report its fetch error")
	}

	st := summary.Sources[0]
	if st.File != "/out/wtw-st-austell.ics" || !st.Changed {
		t.Errorf("unexpected st-austell result: %+v", st)
	}
	if st.Stats.Skipped != 1 || st.Stats.Events != 2 || st.New != 2 {
		t.Errorf("unexpected stats: %+v new=%d", st.Stats, st.New)
	}

	data, err := afero.ReadFile(fs, st.File)
	if err != nil {
		t.Fatalf("reading calendar: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "DTSTART;VALUE=DATE:20251010") || !strings.Contains(out, "DTSTART;VALUE=DATE:20260303") {
		t.Errorf("calendar missing expected events:\n%s", out)
	}
	if exists, _ := afero.Exists(fs, "/out/wtw-truro.ics"); exists {
		t.Error("failed cinema should not get a file")
	}

	again := p.run(context.Background(), testSources)
	if again.Sources[0].Changed {
		t.Error("second run over unchanged listings should leave the file untouched")
	}
	if again.Sources[0].New != 0 || len(again.NewKeys) != 0 {
		t.Errorf("expected nothing new on second run, got %v", again.NewKeys)
	}
	if ledger.LastRun().IsZero() {
		t.Error("expected last run recorded")
	}
}

func TestPipelineNothingWritten(t *testing.T) {
	p, _ := testPipeline(t, fakeFetcher{}, nil)
	summary := p.run(context.Background(), testSources)
	if summary.Written() != 0 {
		t.Errorf("expected no calendars, got %d", summary.Written())
	}
	for _, s := range summary.Sources {
		if s.Err == nil {
			t.Errorf("%s: expected error", s.ID)
		}
	}
}

func TestPipelineKeepsCalendarWhenNoDateParses(t *testing.T) {
	fetcher := fakeFetcher{
		"st-austell": {
			{Title: "Tron: Ares", RawDate: "Expected: 10 October 2025", SourceID: "st-austell"},
		},
		"truro": {
			{Title: "Tron: Ares", RawDate: "Opening soon", SourceID: "truro"},
			{Title: "Wicked: For Good", RawDate: "TBC", SourceID: "truro"},
		},
	}
	p, fs := testPipeline(t, fetcher, nil)
	previous := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	if err := afero.WriteFile(fs, "/out/wtw-truro.ics", previous, 0o644); err != nil {
		t.Fatal(err)
	}

	summary := p.run(context.Background(), testSources)
	if summary.Written() != 1 {
		t.Fatalf("expected only st-austell written, got %d", summary.Written())
	}
	truro := summary.Sources[1]
	if !errors.Is(truro.Err, errNoEvents) {
		t.Errorf("expected errNoEvents for truro, got %v", truro.Err)
	}
	if truro.File != "" || truro.Stats.Skipped != 2 {
		t.Errorf("unexpected truro result: %+v", truro)
	}

	data, err := afero.ReadFile(fs, "/out/wtw-truro.ics")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(previous) {
		t.Errorf("previous calendar overwritten:\n%s", data)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	today, _ := dates.New(2025, time.October, 10)
	data, err := ical.NewSerializer(nil).Render(ical.Calendar{
		SourceID:    "st-austell",
		DisplayName: "St Austell",
		Events:      []aggregate.Event{{Date: today, Title: "Tron: Ares", SourceID: "st-austell"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.ics")
	os.WriteFile(good, data, 0o644)

	n, err := checkFile(good)
	if err != nil || n != 1 {
		t.Errorf("checkFile(good) = %d, %v", n, err)
	}

	bad := filepath.Join(dir, "bad.ics")
	os.WriteFile(bad, []byte("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n"), 0o644)
	if _, err := checkFile(bad); err == nil {
		t.Error("expected error for truncated calendar")
	}

	if _, err := checkFile(filepath.Join(dir, "missing.ics")); err == nil {
		t.Error("expected error for missing file")
	}
}
