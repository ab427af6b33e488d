package cache

import (
	"net/url"
	"strings"
	"time"
)

// FilmMetadata is what a film's detail page told us, as of FetchedAt.
// RuntimeMinutes is 0 when the page did not state one.
type FilmMetadata struct {
	Key            string    `json:"key"`
	RuntimeMinutes int       `json:"runtime_minutes,omitempty"`
	Synopsis       string    `json:"synopsis,omitempty"`
	Cast           []string  `json:"cast,omitempty"`
	Director       string    `json:"director,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// HasDetails reports whether any descriptive field is present.
func (m FilmMetadata) HasDetails() bool {
	return m.RuntimeMinutes > 0 || m.Synopsis != "" || len(m.Cast) > 0 || m.Director != ""
}

// Outcome says how GetOrFetch produced its record.
type Outcome int

const (
	Hit Outcome = iota
	Fetched
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Fetched:
		return "fetched"
	default:
		return "failed"
	}
}

// KeyFor derives the cache key for a film. Detail URLs carry a per-cinema
// ?screen= parameter, so the query is dropped and one entry serves every cinema.
func KeyFor(detailURL, title string) string {
	if detailURL != "" {
		if u, err := url.Parse(detailURL); err == nil && u.Host != "" {
			u.RawQuery = ""
			u.Fragment = ""
			return u.String()
		}
		if i := strings.IndexAny(detailURL, "?#"); i >= 0 {
			return detailURL[:i]
		}
		return detailURL
	}
	return "title:" + strings.ToLower(strings.TrimSpace(title))
}
