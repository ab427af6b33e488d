package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*PrometheusSink)(nil)
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !matchLabels(m.GetLabel(), labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSinkCounts(t *testing.T) {
	s, reg := newTestSink(t)
	cinema := map[string]string{"cinema": "st-austell"}

	s.EntriesListed("st-austell", 12)
	s.EntrySkipped("st-austell")
	s.EntrySkipped("st-austell")
	s.DetailLookup("st-austell", "hit")
	s.DetailLookup("st-austell", "fetched")
	s.DetailLookup("st-austell", "fetched")
	s.EventsEmitted("st-austell", 10)
	s.NewReleases("st-austell", 2)
	s.CalendarWritten("st-austell", false)
	s.SourceFailed("truro", StageFetch)

	if got := metricValue(t, reg, "wtwcal_listing_entries_total", cinema); got != 12 {
		t.Errorf("entries listed = %v, want 12", got)
	}
	if got := metricValue(t, reg, "wtwcal_listing_entries_skipped_total", cinema); got != 2 {
		t.Errorf("entries skipped = %v, want 2", got)
	}
	fetched := map[string]string{"cinema": "st-austell", "outcome": "fetched"}
	if got := metricValue(t, reg, "wtwcal_detail_lookups_total", fetched); got != 2 {
		t.Errorf("fetched lookups = %v, want 2", got)
	}
	if got := metricValue(t, reg, "wtwcal_events_total", cinema); got != 10 {
		t.Errorf("events = %v, want 10", got)
	}
	if got := metricValue(t, reg, "wtwcal_new_releases_total", cinema); got != 2 {
		t.Errorf("new releases = %v, want 2", got)
	}
	unchanged := map[string]string{"cinema": "st-austell", "changed": "false"}
	if got := metricValue(t, reg, "wtwcal_calendar_writes_total", unchanged); got != 1 {
		t.Errorf("unchanged writes = %v, want 1", got)
	}
	failed := map[string]string{"cinema": "truro", "stage": "fetch"}
	if got := metricValue(t, reg, "wtwcal_source_failures_total", failed); got != 1 {
		t.Errorf("source failures = %v, want 1", got)
	}
}

func TestRunCompleted(t *testing.T) {
	s, reg := newTestSink(t)
	s.now = func() time.Time { return time.Unix(1756706400, 0) }
	s.RunCompleted(1500 * time.Millisecond)

	if got := metricValue(t, reg, "wtwcal_run_duration_seconds", nil); got != 1.5 {
		t.Errorf("run duration = %v, want 1.5", got)
	}
	if got := metricValue(t, reg, "wtwcal_last_run_timestamp_seconds", nil); got != 1756706400 {
		t.Errorf("last run = %v", got)
	}
}

func TestDoubleRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	s := NewPrometheusSink(reg)
	s.EventsEmitted("x", 1)
}

func TestWriteTextfile(t *testing.T) {
	s, reg := newTestSink(t)
	s.EventsEmitted("st-austell", 3)

	path := filepath.Join(t.TempDir(), "textfile", "wtwcal.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `wtwcal_events_total{cinema="st-austell"} 3`) {
		t.Errorf("unexpected textfile:\n%s", data)
	}
}

func TestNoopSink(t *testing.T) {
	var s Sink = NewNoopSink()
	s.EntriesListed("x", 1)
	s.RunCompleted(time.Second)
}
