package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/aggregate"
)

// Source is the outcome for one cinema.
type Source struct {
	ID      string
	Name    string
	Stats   aggregate.SourceStats
	File    string
	Changed bool
	New     int
	Err     error
}

type Summary struct {
	Sources  []Source
	Events   []aggregate.Event
	NewKeys  map[string]bool
	Names    map[string]string
	LogPath  string
	Duration time.Duration
}

// Written counts the cinemas whose calendar was produced.
func (s Summary) Written() int {
	n := 0
	for _, src := range s.Sources {
		if src.Err == nil && src.File != "" {
			n++
		}
	}
	return n
}

// Render formats the end-of-run summary: per cinema counts, then the
// upcoming releases grouped by date with new ones flagged.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WTW Cinemas calendar"))
	b.WriteString("\n\n")

	for _, src := range s.Sources {
		if src.Err != nil {
			fmt.Fprintf(&b, "%s %s\n", failedStyle.Render("✗ "+src.Name), dimStyle.Render(src.Err.Error()))
			continue
		}
		state := "unchanged"
		if src.Changed {
			state = "updated"
		}
		fmt.Fprintf(&b, "%s %s\n", sourceStyle.Render("✓ "+src.Name), dimStyle.Render(src.File+" ("+state+")"))
		st := src.Stats
		fmt.Fprintf(&b, "  listed %d  events %d  duplicates %d  skipped %d\n", st.Listed, st.Events, st.Duplicates, st.Skipped)
		fmt.Fprintf(&b, "  details: cached %d  fetched %d  failed %d  new %d\n", st.Cached, st.Fetched, st.Failed, src.New)
	}

	if len(s.Events) > 0 {
		b.WriteString("\n")
		var current string
		for _, ev := range s.Events {
			if d := ev.Date.Long(); d != current {
				current = d
				b.WriteString(dateStyle.Render(d + ":"))
				b.WriteString("\n")
			}
			name := s.Names[ev.SourceID]
			if name == "" {
				name = ev.SourceID
			}
			line := fmt.Sprintf("  • %s @ %s", ev.Title, name)
			if s.NewKeys[ev.Key().String()] {
				line += " " + newStyle.Render("new")
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%d of %d calendar(s) written", s.Written(), len(s.Sources))
	if s.Duration > 0 {
		fmt.Fprintf(&b, " in %s", s.Duration.Round(time.Millisecond))
	}
	b.WriteString("\n")
	if s.LogPath != "" {
		b.WriteString(dimStyle.Render("Diagnostics: " + s.LogPath))
		b.WriteString("\n")
	}
	return b.String()
}
