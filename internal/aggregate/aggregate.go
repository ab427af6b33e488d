package aggregate

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/cache"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/dates"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/listing"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/logging"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/metrics"
	"golang.org/x/text/cases"
)

// Screening format tags such as "(2D)" or "(Subtitled)" trail the title on
// listing pages and are not part of the film's identity.
var trailingTagRe = regexp.MustCompile(`\s*\([^)]*\)$`)

// Key is the dedup identity of a calendar event.
type Key struct {
	Date     dates.Date
	Title    string
	SourceID string
}

func (k Key) String() string {
	return k.Date.String() + "|" + k.SourceID + "|" + k.Title
}

// Event is one release at one cinema on one day.
type Event struct {
	Date       dates.Date
	Title      string
	SourceID   string
	BookingURL string
	Metadata   cache.FilmMetadata
}

func (e Event) Key() Key {
	return Key{Date: e.Date, Title: e.Title, SourceID: e.SourceID}
}

// DetailSource fetches a film page. listing.DetailFetcher satisfies it.
type DetailSource interface {
	FetchDetail(ctx context.Context, detailURL string) (cache.FilmMetadata, error)
}

type SourceStats struct {
	Listed     int
	Skipped    int
	Duplicates int
	Cached     int
	Fetched    int
	Failed     int
	Events     int
}

type Result struct {
	Events      []Event
	ParseErrors []*dates.ParseError
	FetchErrors []error
	Stats       map[string]*SourceStats
}

// Stat returns the stats for id, creating them on first use.
func (r *Result) Stat(id string) *SourceStats {
	if r.Stats == nil {
		r.Stats = make(map[string]*SourceStats)
	}
	s, ok := r.Stats[id]
	if !ok {
		s = &SourceStats{}
		r.Stats[id] = s
	}
	return s
}

// Aggregator merges raw listing entries into deduplicated, ordered events.
// Cache and Details may be nil, in which case events carry no metadata.
type Aggregator struct {
	Normalizer *dates.Normalizer
	Cache      *cache.Store
	Details    DetailSource
	Window     time.Duration
	Log        *logging.Logger
	Metrics    metrics.Sink
}

// Aggregate never fails as a whole: bad dates and failed detail fetches are
// recorded in the Result and the entry is dropped or left bare respectively.
func (a *Aggregator) Aggregate(ctx context.Context, entries []listing.Entry) Result {
	log := a.Log
	if log == nil {
		log = logging.Discard()
	}
	sink := a.Metrics
	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	var res Result
	seen := make(map[Key]bool)
	for _, e := range entries {
		st := res.Stat(e.SourceID)
		st.Listed++

		title := CleanTitle(e.Title)
		if title == "" {
			st.Skipped++
			sink.EntrySkipped(e.SourceID)
			log.Warn("%s: skipping entry with empty title (raw date %q)", e.SourceID, e.RawDate)
			continue
		}

		date, err := a.Normalizer.Normalize(e.RawDate, e.SourceID)
		if err != nil {
			var pe *dates.ParseError
			if errors.As(err, &pe) {
				res.ParseErrors = append(res.ParseErrors, pe)
			}
			st.Skipped++
			sink.EntrySkipped(e.SourceID)
			log.Warn("%s: skipping %q: %v", e.SourceID, title, err)
			continue
		}

		key := Key{Date: date, Title: title, SourceID: e.SourceID}
		if seen[key] {
			st.Duplicates++
			continue
		}
		seen[key] = true

		ev := Event{Date: date, Title: title, SourceID: e.SourceID, BookingURL: e.DetailURL}
		ev.Metadata = a.lookup(ctx, e, title, st, &res, log, sink)
		res.Events = append(res.Events, ev)
		st.Events++
	}

	Sort(res.Events)
	return res
}

func (a *Aggregator) lookup(ctx context.Context, e listing.Entry, title string, st *SourceStats, res *Result, log *logging.Logger, sink metrics.Sink) cache.FilmMetadata {
	key := cache.KeyFor(e.DetailURL, title)
	if a.Cache == nil || a.Details == nil || e.DetailURL == "" {
		return cache.FilmMetadata{Key: key}
	}

	fetch := func(ctx context.Context, _ string) (cache.FilmMetadata, error) {
		return a.Details.FetchDetail(ctx, e.DetailURL)
	}
	m, outcome, err := a.Cache.GetOrFetch(ctx, key, fetch, a.Window)
	sink.DetailLookup(e.SourceID, outcome.String())
	switch outcome {
	case cache.Hit:
		st.Cached++
		log.Debug("%s: cached details for %q", e.SourceID, title)
	case cache.Fetched:
		st.Fetched++
		log.Debug("%s: fetched details for %q", e.SourceID, title)
	case cache.Failed:
		st.Failed++
		res.FetchErrors = append(res.FetchErrors, err)
		log.Warn("%s: details for %q unavailable: %v", e.SourceID, title, err)
	}
	return m
}

// CleanTitle trims whitespace and one trailing parenthesised tag.
func CleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(trailingTagRe.ReplaceAllString(s, ""))
}

// Sort orders events by date, then title ignoring case, then cinema. Ties keep
// their input order.
func Sort(events []Event) {
	fold := cases.Fold()
	folded := make(map[string]string, len(events))
	for _, e := range events {
		if _, ok := folded[e.Title]; !ok {
			folded[e.Title] = fold.String(e.Title)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if fa, fb := folded[a.Title], folded[b.Title]; fa != fb {
			return fa < fb
		}
		return a.SourceID < b.SourceID
	})
}

// GroupBySource splits events per cinema, preserving order within each group.
func GroupBySource(events []Event) map[string][]Event {
	out := make(map[string][]Event)
	for _, e := range events {
		out[e.SourceID] = append(out[e.SourceID], e)
	}
	return out
}

// Keys returns the dedup keys of events in order, as strings.
func Keys(events []Event) []string {
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.Key().String()
	}
	return keys
}
