package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/aggregate"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/cache"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/dates"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/history"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/ical"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/listing"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/logging"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/metrics"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	errNothingWritten = errors.New("no calendar could be written")
	errNoEvents       = errors.New("no listing had a usable release date")
)

func runPipeline(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	today, err := referenceDate(flagToday, start)
	if err != nil {
		return err
	}
	rules, err := ical.RulesFrom(cfg.ActiveAlarms())
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	outDir := cfg.OutputDir
	if flagOutput != "" {
		outDir = flagOutput
	}

	log, err := logging.Open(cfg.ResolvedLogPath(), flagVerbose)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer log.Close()

	var (
		sink metrics.Sink = metrics.NewNoopSink()
		reg  *prometheus.Registry
	)
	if cfg.MetricsTextfile != "" {
		reg = prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(reg)
	}

	fs := afero.NewOsFs()
	store, err := cache.Load(fs, cfg.ResolvedCachePath())
	if err != nil {
		log.Warn("%v; starting with an empty cache", err)
	}

	ledger, err := history.Open(cfg.ResolvedHistoryPath())
	if err != nil {
		log.Warn("history unavailable, new releases will not be reported: %v", err)
	} else {
		defer ledger.Close()
	}

	client := listing.NewClient(listing.ClientOptions{
		Timeout:           cfg.HTTPTimeout(),
		Attempts:          uint(cfg.HTTP.Retries),
		Delay:             cfg.RetryDelay(),
		Multiplier:        cfg.HTTP.RetryMultiplier,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		UserAgent:         cfg.HTTP.UserAgent,
		OnRetry: func(url string, attempt uint, err error) {
			log.Warn("attempt %d for %s failed, retrying: %v", attempt, url, err)
		},
	})

	window := cfg.CacheExpiryDuration()
	if flagRefresh {
		window = 0
	}

	p := &pipeline{
		fetcher: listing.NewByType(client),
		agg: &aggregate.Aggregator{
			Normalizer: dates.NewNormalizer(today, cfg.DateToleranceDuration()),
			Cache:      store,
			Details:    listing.NewDetailFetcher(client),
			Window:     window,
			Log:        log,
			Metrics:    sink,
		},
		ser:    ical.NewSerializer(rules),
		fs:     fs,
		outDir: outDir,
		ledger: ledger,
		log:    log,
		sink:   sink,
		now:    time.Now,
	}

	log.Info("Generating calendars for %d cinema(s), reference date %s", len(cfg.EnabledCinemas()), today)
	summary := p.run(cmd.Context(), cfg.EnabledCinemas())

	if err := store.Save(); err != nil {
		log.Error("saving cache: %v", err)
	}

	summary.LogPath = log.Path()
	summary.Duration = time.Since(start)
	sink.RunCompleted(summary.Duration)
	if reg != nil {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile, reg); err != nil {
			log.Error("%v", err)
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), "\n"+report.Render(summary))

	if summary.Written() == 0 {
		return errNothingWritten
	}
	return nil
}

// pipeline runs fetch, aggregate, serialize and write for each cinema in turn.
// A failure at any stage only loses that cinema's file.
type pipeline struct {
	fetcher listing.Fetcher
	agg     *aggregate.Aggregator
	ser     *ical.Serializer
	fs      afero.Fs
	outDir  string
	ledger  *history.Ledger
	log     *logging.Logger
	sink    metrics.Sink
	now     func() time.Time
}

func (p *pipeline) run(ctx context.Context, sources []config.Source) report.Summary {
	summary := report.Summary{Names: make(map[string]string)}

	for _, src := range sources {
		summary.Names[src.ID] = src.Name
		summary.Sources = append(summary.Sources, p.runSource(ctx, src, &summary))
	}
	aggregate.Sort(summary.Events)

	if p.ledger != nil {
		p.recordHistory(&summary)
	}
	return summary
}

func (p *pipeline) runSource(ctx context.Context, src config.Source, summary *report.Summary) report.Source {
	out := report.Source{ID: src.ID, Name: src.Name}

	entries, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		p.log.Error("%s: %v", src.ID, err)
		p.sink.SourceFailed(src.ID, metrics.StageFetch)
		out.Err = err
		return out
	}
	p.log.Info("%s: %d listing(s) found", src.ID, len(entries))

	res := p.agg.Aggregate(ctx, entries)
	out.Stats = *res.Stat(src.ID)
	p.sink.EntriesListed(src.ID, out.Stats.Listed)

	// Keep the previous file rather than replace it with an empty calendar.
	if len(res.Events) == 0 {
		err := fmt.Errorf("%s: %w (%d listed, %d skipped)", src.ID, errNoEvents, out.Stats.Listed, out.Stats.Skipped)
		p.log.Error("%v", err)
		p.sink.SourceFailed(src.ID, metrics.StageParse)
		out.Err = err
		return out
	}

	data, err := p.ser.Render(ical.Calendar{SourceID: src.ID, DisplayName: src.Name, Events: res.Events})
	if err != nil {
		p.log.Error("%v", err)
		p.sink.SourceFailed(src.ID, metrics.StageSerialize)
		out.Err = err
		return out
	}

	path := filepath.Join(p.outDir, ical.FileName(src.ID))
	changed, err := ical.WriteFile(p.fs, path, data)
	if err != nil {
		p.log.Error("%s: %v", src.ID, err)
		p.sink.SourceFailed(src.ID, metrics.StageWrite)
		out.Err = err
		return out
	}
	p.sink.CalendarWritten(src.ID, changed)
	p.sink.EventsEmitted(src.ID, len(res.Events))

	out.File = path
	out.Changed = changed
	summary.Events = append(summary.Events, res.Events...)
	return out
}

func (p *pipeline) recordHistory(summary *report.Summary) {
	added, err := p.ledger.RecordNew(aggregate.Keys(summary.Events), p.now())
	if err != nil {
		p.log.Error("recording history: %v", err)
		return
	}
	summary.NewKeys = make(map[string]bool, len(added))
	for _, k := range added {
		summary.NewKeys[k] = true
	}

	perSource := make(map[string]int)
	for _, ev := range summary.Events {
		if summary.NewKeys[ev.Key().String()] {
			perSource[ev.SourceID]++
		}
	}
	for i := range summary.Sources {
		s := &summary.Sources[i]
		s.New = perSource[s.ID]
		if s.New > 0 {
			p.sink.NewReleases(s.ID, s.New)
		}
	}
	if len(added) > 0 {
		p.log.Info("%d new release(s) since the last run", len(added))
	}
	if err := p.ledger.SetLastRun(p.now()); err != nil {
		p.log.Warn("recording last run: %v", err)
	}
}

// referenceDate is today unless overridden with --today.
func referenceDate(flag string, now time.Time) (dates.Date, error) {
	if flag == "" {
		return dates.FromTime(now), nil
	}
	d, err := dates.Parse(flag)
	if err != nil {
		return dates.Date{}, fmt.Errorf("invalid --today value: %w", err)
	}
	return d, nil
}
