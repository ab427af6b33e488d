package metrics

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts into a registry that is dumped to a node_exporter
// textfile at the end of the run.
type PrometheusSink struct {
	entriesListed  *prometheus.CounterVec
	entriesSkipped *prometheus.CounterVec
	detailLookups  *prometheus.CounterVec
	eventsEmitted  *prometheus.CounterVec
	newReleases    *prometheus.CounterVec
	calendarWrites *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRunSeconds prometheus.Gauge
	now            func() time.Time
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{now: time.Now}

	s.entriesListed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_listing_entries_total",
		Help: "Raw entries read from listing pages.",
	}, []string{"cinema"})
	s.entriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_listing_entries_skipped_total",
		Help: "Entries dropped because their date could not be parsed.",
	}, []string{"cinema"})
	s.detailLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_detail_lookups_total",
		Help: "Film metadata lookups by outcome (hit, fetched, failed).",
	}, []string{"cinema", "outcome"})
	s.eventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_events_total",
		Help: "Calendar events written.",
	}, []string{"cinema"})
	s.newReleases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_new_releases_total",
		Help: "Releases not seen in any previous run.",
	}, []string{"cinema"})
	s.calendarWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_calendar_writes_total",
		Help: "Calendar files produced, by whether the content changed.",
	}, []string{"cinema", "changed"})
	s.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wtwcal_source_failures_total",
		Help: "Cinemas that produced no calendar, by failing stage.",
	}, []string{"cinema", "stage"})
	s.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wtwcal_run_duration_seconds",
		Help: "Wall time of the last run.",
	})
	s.lastRunSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wtwcal_last_run_timestamp_seconds",
		Help: "Unix time the last run completed.",
	})

	s.register(reg, s.entriesListed, "wtwcal_listing_entries_total")
	s.register(reg, s.entriesSkipped, "wtwcal_listing_entries_skipped_total")
	s.register(reg, s.detailLookups, "wtwcal_detail_lookups_total")
	s.register(reg, s.eventsEmitted, "wtwcal_events_total")
	s.register(reg, s.newReleases, "wtwcal_new_releases_total")
	s.register(reg, s.calendarWrites, "wtwcal_calendar_writes_total")
	s.register(reg, s.sourceFailures, "wtwcal_source_failures_total")
	s.register(reg, s.runDuration, "wtwcal_run_duration_seconds")
	s.register(reg, s.lastRunSeconds, "wtwcal_last_run_timestamp_seconds")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) EntriesListed(cinema string, n int) {
	s.entriesListed.WithLabelValues(cinema).Add(float64(n))
}

func (s *PrometheusSink) EntrySkipped(cinema string) {
	s.entriesSkipped.WithLabelValues(cinema).Inc()
}

func (s *PrometheusSink) DetailLookup(cinema string, outcome string) {
	s.detailLookups.WithLabelValues(cinema, outcome).Inc()
}

func (s *PrometheusSink) EventsEmitted(cinema string, n int) {
	s.eventsEmitted.WithLabelValues(cinema).Add(float64(n))
}

func (s *PrometheusSink) NewReleases(cinema string, n int) {
	s.newReleases.WithLabelValues(cinema).Add(float64(n))
}

func (s *PrometheusSink) CalendarWritten(cinema string, changed bool) {
	s.calendarWrites.WithLabelValues(cinema, strconv.FormatBool(changed)).Inc()
}

func (s *PrometheusSink) SourceFailed(cinema string, stage string) {
	s.sourceFailures.WithLabelValues(cinema, stage).Inc()
}

func (s *PrometheusSink) RunCompleted(duration time.Duration) {
	s.runDuration.Set(duration.Seconds())
	s.lastRunSeconds.Set(float64(s.now().Unix()))
}

// WriteTextfile dumps g in the text exposition format, creating the parent
// directory if needed.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
