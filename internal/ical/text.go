package ical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxLineOctets is the content line limit, excluding the CRLF.
const maxLineOctets = 75

var (
	newlines    = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	textEscaper = strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	)
)

// escapeText encodes a TEXT property value. Any line break becomes \n; other
// control characters except tab are not allowed in TEXT and are dropped.
func escapeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, newlines.Replace(s))
	return textEscaper.Replace(s)
}

// unescapeText reverses escapeText. Unknown escapes keep the escaped char.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// fold splits a content line into physical lines of at most maxLineOctets,
// continuation lines starting with a single space. Multi-byte characters are
// never split.
func fold(line string) []string {
	if len(line) <= maxLineOctets {
		return []string{line}
	}
	var out []string
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		out = append(out, line[:cut])
		line = " " + line[cut:]
	}
	return append(out, line)
}

// unfold joins physical lines back into content lines. It accepts CRLF or
// bare LF endings.
func unfold(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(data, "\n") {
		if l == "" {
			continue
		}
		if (l[0] == ' ' || l[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += l[1:]
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
