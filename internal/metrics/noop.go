package metrics

import "time"

// NoopSink is used when no metrics textfile is configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EntriesListed(cinema string, count int)      {}
func (n *NoopSink) EntrySkipped(cinema string)                  {}
func (n *NoopSink) DetailLookup(cinema string, outcome string)  {}
func (n *NoopSink) EventsEmitted(cinema string, count int)      {}
func (n *NoopSink) NewReleases(cinema string, count int)        {}
func (n *NoopSink) CalendarWritten(cinema string, changed bool) {}
func (n *NoopSink) SourceFailed(cinema string, stage string)    {}
func (n *NoopSink) RunCompleted(duration time.Duration)         {}
