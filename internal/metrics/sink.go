package metrics

import "time"

// Sink records per-run counters. Implementations must not block or fail the
// caller; a broken backend only loses numbers.
type Sink interface {
	EntriesListed(cinema string, n int)
	EntrySkipped(cinema string)
	DetailLookup(cinema string, outcome string)
	EventsEmitted(cinema string, n int)
	NewReleases(cinema string, n int)
	CalendarWritten(cinema string, changed bool)
	SourceFailed(cinema string, stage string)
	RunCompleted(duration time.Duration)
}

// Stage labels for SourceFailed.
const (
	StageFetch     = "fetch"
	StageParse     = "parse"
	StageSerialize = "serialize"
	StageWrite     = "write"
)
