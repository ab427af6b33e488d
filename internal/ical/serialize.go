package ical

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/aggregate"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/google/uuid"
)

const (
	DefaultProdID = "-//WTW Cinemas//wtwcal//EN"
	uidDomain     = "wtwcal"
)

var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("wtwcinemas.co.uk"))

// SerializationError means a rendered calendar failed validation. The file for
// that cinema is not written.
type SerializationError struct {
	SourceID string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing calendar for %s: %v", e.SourceID, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Rule is a reminder fired DaysBefore days ahead of the release at Hour:Minute
// local time.
type Rule struct {
	DaysBefore  int
	Description string
	Hour        int
	Minute      int
}

// RulesFrom converts configured alarms, which must already carry a time.
func RulesFrom(alarms []config.Alarm) ([]Rule, error) {
	rules := make([]Rule, 0, len(alarms))
	for i, a := range alarms {
		h, m, err := config.ParseClock(a.Time)
		if err != nil {
			return nil, fmt.Errorf("alarm %d: %w", i, err)
		}
		rules = append(rules, Rule{DaysBefore: a.DaysBefore, Description: a.Description, Hour: h, Minute: m})
	}
	return rules, nil
}

// Calendar is everything that goes into one cinema's file.
type Calendar struct {
	SourceID    string
	DisplayName string
	Events      []aggregate.Event
}

type Serializer struct {
	ProdID string
	Rules  []Rule
}

func NewSerializer(rules []Rule) *Serializer {
	return &Serializer{ProdID: DefaultProdID, Rules: rules}
}

// Render writes cal as an iCalendar document and checks that it parses back
// with every event intact. Output depends only on the input: re-rendering an
// unchanged calendar yields identical bytes.
func (s *Serializer) Render(cal Calendar) ([]byte, error) {
	var w writer
	w.prop("BEGIN", "VCALENDAR")
	w.prop("VERSION", "2.0")
	w.prop("PRODID", s.ProdID)
	w.prop("CALSCALE", "GREGORIAN")
	w.prop("METHOD", "PUBLISH")
	w.prop("X-WR-CALNAME", escapeText("WTW Cinemas "+cal.DisplayName+" Film Releases"))
	w.prop("X-WR-CALDESC", escapeText("Upcoming film releases at WTW Cinemas "+cal.DisplayName))
	for _, ev := range cal.Events {
		s.writeEvent(&w, cal, ev)
	}
	w.prop("END", "VCALENDAR")

	data := []byte(w.String())
	if err := s.verify(data, cal); err != nil {
		return nil, &SerializationError{SourceID: cal.SourceID, Err: err}
	}
	return data, nil
}

func (s *Serializer) writeEvent(w *writer, cal Calendar, ev aggregate.Event) {
	w.prop("BEGIN", "VEVENT")
	w.prop("UID", UID(ev.Key()))
	w.prop("DTSTAMP", ev.Date.Compact()+"T000000Z")
	w.prop("DTSTART;VALUE=DATE", ev.Date.Compact())
	w.prop("DTEND;VALUE=DATE", ev.Date.AddDays(1).Compact())
	w.prop("SUMMARY", escapeText(ev.Title+" @ "+cal.DisplayName))
	w.prop("DESCRIPTION", escapeText(Description(ev, cal.DisplayName)))
	w.prop("LOCATION", escapeText(Location(cal.DisplayName)))
	if ev.BookingURL != "" {
		w.prop("URL", ev.BookingURL)
	}
	w.prop("TRANSP", "TRANSPARENT")
	for _, r := range s.Rules {
		trigger := ev.Date.AddDays(-r.DaysBefore)
		w.prop("BEGIN", "VALARM")
		w.prop("ACTION", "DISPLAY")
		w.prop("DESCRIPTION", escapeText(r.Description))
		w.prop("TRIGGER;VALUE=DATE-TIME", fmt.Sprintf("%sT%02d%02d00", trigger.Compact(), r.Hour, r.Minute))
		w.prop("END", "VALARM")
	}
	w.prop("END", "VEVENT")
}

// UID is stable for a dedup key across runs.
func UID(k aggregate.Key) string {
	return uuid.NewSHA1(uidNamespace, []byte(k.String())).String() + "@" + uidDomain
}

func Location(displayName string) string {
	return "WTW Cinemas " + displayName
}

// Description lays out whatever metadata is known: the title line (with
// runtime), then synopsis and credits, then the two fixed booking lines.
// Missing fields leave no gap.
func Description(ev aggregate.Event, displayName string) string {
	m := ev.Metadata
	head := ev.Title
	if m.RuntimeMinutes > 0 {
		head += " (" + strconv.Itoa(m.RuntimeMinutes) + " min)"
	}

	var details []string
	if m.Synopsis != "" {
		details = append(details, m.Synopsis)
	}
	if len(m.Cast) > 0 {
		details = append(details, "Starring: "+strings.Join(m.Cast, ", "))
	}
	if m.Director != "" {
		details = append(details, "Director: "+m.Director)
	}

	blocks := []string{head}
	if len(details) > 0 {
		blocks = append(blocks, strings.Join(details, "\n"))
	}
	blocks = append(blocks, "🎬 Film release at WTW Cinemas "+displayName+"\n🎟️ Click the URL to book tickets")
	return strings.Join(blocks, "\n\n")
}

func (s *Serializer) verify(data []byte, cal Calendar) error {
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if got := len(doc.Events()); got != len(cal.Events) {
		return fmt.Errorf("rendered %d events, parsed back %d", len(cal.Events), got)
	}
	return nil
}

type writer struct {
	b strings.Builder
}

// prop writes one content line. value must already be escaped.
func (w *writer) prop(name, value string) {
	for _, l := range fold(name + ":" + value) {
		w.b.WriteString(l)
		w.b.WriteString("\r\n")
	}
}

func (w *writer) String() string { return w.b.String() }
