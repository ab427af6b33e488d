package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far in the past a year-less date may fall before it
// is read as next year's date instead.
const DefaultTolerance = 60 * 24 * time.Hour

var ErrUnparseable = errors.New("unparseable release date")

// ParseError reports a raw date that no pattern could turn into exactly one day.
type ParseError struct {
	Raw      string
	SourceID string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("date %q from %s: %s", e.Raw, e.SourceID, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseable
}

// Match is what a matcher pulled out of the text. Year is 0 when the text
// carries no year.
type Match struct {
	Day   int
	Month string
	Year  int
}

// Matcher recognises one phrasing. ok is false when the text does not have the
// matcher's shape at all; a shaped match with nonsense fields is still ok and is
// rejected later.
type Matcher struct {
	Name  string
	Match func(text string) (m Match, ok bool)
}

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "sept" {
		return time.September, true
	}
	for i, full := range monthNames {
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

var (
	expectedRe   = regexp.MustCompile(`(?i)Expected:\s*(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+\.?)\s+(\d{4})`)
	expectedAtRe = regexp.MustCompile(`(?i)Expected at .+? from the (\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+\.?)(?:\s+(\d{4}))?`)
	bareRe       = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthAlternation() + `)\.?(?:\s+(\d{4}))?\b`)
)

func monthAlternation() string {
	var alts []string
	for _, m := range monthNames {
		alts = append(alts, m)
	}
	return strings.Join(alts, "|") + "|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec"
}

func regexMatcher(name string, re *regexp.Regexp) Matcher {
	return Matcher{
		Name: name,
		Match: func(text string) (Match, bool) {
			sub := re.FindStringSubmatch(text)
			if sub == nil {
				return Match{}, false
			}
			day, _ := strconv.Atoi(sub[1])
			m := Match{Day: day, Month: sub[2]}
			if len(sub) > 3 && sub[3] != "" {
				m.Year, _ = strconv.Atoi(sub[3])
			}
			return m, true
		},
	}
}

// DefaultMatchers in priority order. New phrasings are appended.
var DefaultMatchers = []Matcher{
	regexMatcher("expected", expectedRe),
	regexMatcher("expected-at", expectedAtRe),
	regexMatcher("bare", bareRe),
}

// Normalizer turns free-text release phrases into dates relative to Today.
type Normalizer struct {
	Today     Date
	Tolerance time.Duration
	Matchers  []Matcher
}

func NewNormalizer(today Date, tolerance time.Duration) *Normalizer {
	return &Normalizer{Today: today, Tolerance: tolerance, Matchers: DefaultMatchers}
}

// Normalize resolves raw to a single date or returns a *ParseError.
func (n *Normalizer) Normalize(raw, sourceID string) (Date, error) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: "empty"}
	}

	matchers := n.Matchers
	if matchers == nil {
		matchers = DefaultMatchers
	}
	for _, m := range matchers {
		found, ok := m.Match(text)
		if !ok {
			continue
		}
		return n.resolve(found, raw, sourceID)
	}
	return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: "no recognised pattern"}
}

func (n *Normalizer) resolve(m Match, raw, sourceID string) (Date, error) {
	month, ok := lookupMonth(m.Month)
	if !ok {
		return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: fmt.Sprintf("unrecognised month %q", m.Month)}
	}

	if m.Year != 0 {
		d, ok := New(m.Year, month, m.Day)
		if !ok {
			return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: "invalid date"}
		}
		return d, nil
	}

	// Feb 29 is judged against Feb 28 so a leap day can roll into a leap year.
	year := n.Today.Year
	probe, ok := New(year, month, m.Day)
	if !ok && month == time.February && m.Day == 29 {
		probe, ok = New(year, time.February, 28)
	}
	if !ok {
		return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: "invalid date"}
	}
	if probe.Time().Add(n.Tolerance).Before(n.Today.Time()) {
		year++
	}
	d, ok := New(year, month, m.Day)
	if !ok {
		return Date{}, &ParseError{Raw: raw, SourceID: sourceID, Reason: "invalid date"}
	}
	return d, nil
}
