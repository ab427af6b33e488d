package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/evenwebb/wtw-cinemas-calendar/internal/dates"
)

// Property is one unfolded content line. Value is still escaped; use Text for
// TEXT-typed properties.
type Property struct {
	Name   string
	Params map[string]string
	Value  string
}

func (p *Property) Text() string {
	return unescapeText(p.Value)
}

// Component is a BEGIN/END block.
type Component struct {
	Name       string
	Properties []*Property
	Children   []*Component
}

// Prop returns the first property called name, or nil.
func (c *Component) Prop(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Text returns the unescaped value of name, or "".
func (c *Component) Text(name string) string {
	if p := c.Prop(name); p != nil {
		return p.Text()
	}
	return ""
}

func (c *Component) children(name string) []*Component {
	var out []*Component
	for _, ch := range c.Children {
		if ch.Name == name {
			out = append(out, ch)
		}
	}
	return out
}

// Document is a parsed calendar file.
type Document struct {
	Calendar *Component
}

func (d *Document) Events() []*Component {
	return d.Calendar.children("VEVENT")
}

// Alarms returns the VALARMs of an event.
func Alarms(event *Component) []*Component {
	return event.children("VALARM")
}

// Parse reads one VCALENDAR. It checks structure only; see Validate.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}

	var (
		stack []*Component
		root  *Component
	)
	for n, line := range unfold(string(data)) {
		p, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		switch p.Name {
		case "BEGIN":
			c := &Component{Name: strings.ToUpper(p.Value)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("line %d: content after END:%s", n+1, root.Name)
				}
				root = c
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, c)
			}
			stack = append(stack, c)
		case "END":
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: END:%s without BEGIN", n+1, p.Value)
			}
			top := stack[len(stack)-1]
			if top.Name != strings.ToUpper(p.Value) {
				return nil, fmt.Errorf("line %d: END:%s closes %s", n+1, p.Value, top.Name)
			}
			stack = stack[:len(stack)-1]
		default:
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: %s outside any component", n+1, p.Name)
			}
			top := stack[len(stack)-1]
			top.Properties = append(top.Properties, p)
		}
	}

	if root == nil {
		return nil, errors.New("no calendar found")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unterminated %s", stack[len(stack)-1].Name)
	}
	if root.Name != "VCALENDAR" {
		return nil, fmt.Errorf("top-level component is %s, want VCALENDAR", root.Name)
	}
	return &Document{Calendar: root}, nil
}

// parseLine splits NAME;PARAM=VAL:VALUE, honouring quoted parameter values.
func parseLine(line string) (*Property, error) {
	inQuote := false
	colon := -1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ':':
			if !inQuote {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon <= 0 {
		return nil, fmt.Errorf("malformed content line %q", line)
	}

	head, value := line[:colon], line[colon+1:]
	parts := splitUnquoted(head, ';')
	p := &Property{Name: strings.ToUpper(parts[0]), Value: value}
	if p.Name == "" {
		return nil, fmt.Errorf("empty property name in %q", line)
	}
	for _, param := range parts[1:] {
		k, v, ok := strings.Cut(param, "=")
		if !ok {
			return nil, fmt.Errorf("malformed parameter %q", param)
		}
		if p.Params == nil {
			p.Params = make(map[string]string)
		}
		p.Params[strings.ToUpper(k)] = strings.Trim(v, `"`)
	}
	return p, nil
}

func splitUnquoted(s string, sep byte) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// Validate checks the properties this program relies on being present and
// well formed.
func (d *Document) Validate() error {
	var errs []error
	cal := d.Calendar
	for _, name := range []string{"VERSION", "PRODID"} {
		if cal.Prop(name) == nil {
			errs = append(errs, fmt.Errorf("calendar: missing %s", name))
		}
	}
	if v := cal.Prop("VERSION"); v != nil && v.Value != "2.0" {
		errs = append(errs, fmt.Errorf("calendar: VERSION %q, want 2.0", v.Value))
	}

	uids := make(map[string]bool)
	for i, ev := range d.Events() {
		if err := validateEvent(ev); err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		uid := ev.Prop("UID").Value
		if uids[uid] {
			errs = append(errs, fmt.Errorf("event %d: duplicate UID %s", i, uid))
		}
		uids[uid] = true
	}
	return errors.Join(errs...)
}

func validateEvent(ev *Component) error {
	for _, name := range []string{"UID", "DTSTAMP", "DTSTART", "SUMMARY"} {
		if ev.Prop(name) == nil {
			return fmt.Errorf("missing %s", name)
		}
	}
	start, err := EventDate(ev, "DTSTART")
	if err != nil {
		return err
	}
	if ev.Prop("DTEND") != nil {
		end, err := EventDate(ev, "DTEND")
		if err != nil {
			return err
		}
		if !end.After(start) {
			return fmt.Errorf("DTEND %s not after DTSTART %s", end, start)
		}
	}
	for j, a := range Alarms(ev) {
		if a.Prop("ACTION") == nil || a.Prop("TRIGGER") == nil {
			return fmt.Errorf("alarm %d: missing ACTION or TRIGGER", j)
		}
	}
	return nil
}

// EventDate reads a VALUE=DATE property such as DTSTART.
func EventDate(ev *Component, name string) (dates.Date, error) {
	p := ev.Prop(name)
	if p == nil {
		return dates.Date{}, fmt.Errorf("missing %s", name)
	}
	v := p.Value
	if len(v) != 8 {
		return dates.Date{}, fmt.Errorf("%s %q: want YYYYMMDD", name, v)
	}
	d, err := dates.Parse(v[:4] + "-" + v[4:6] + "-" + v[6:])
	if err != nil {
		return dates.Date{}, fmt.Errorf("%s %q: %w", name, v, err)
	}
	return d, nil
}
