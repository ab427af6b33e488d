package listing

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/cache"
	"golang.org/x/net/html"
)

const (
	minSynopsisLen = 50
	maxSynopsisLen = 500
)

var (
	runtimeRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)\b`)
	synopsisSkips = []string{"cookie", "privacy", "terms", "wheelchair", "audio description"}
)

// DetailFetcher pulls runtime, cast, director and synopsis off a film page.
// Any of them may be missing; the record is returned with what was found.
type DetailFetcher struct {
	client Getter
}

func NewDetailFetcher(client Getter) *DetailFetcher {
	return &DetailFetcher{client: client}
}

func (f *DetailFetcher) FetchDetail(ctx context.Context, detailURL string) (cache.FilmMetadata, error) {
	if detailURL == "" {
		return cache.FilmMetadata{}, &FetchError{URL: detailURL, Err: fmt.Errorf("no detail url")}
	}
	body, err := f.client.Get(ctx, detailURL)
	if err != nil {
		return cache.FilmMetadata{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return cache.FilmMetadata{}, &FetchError{URL: detailURL, Err: fmt.Errorf("parsing html: %w", err)}
	}
	return ParseDetail(doc), nil
}

// ParseDetail extracts what it can from a film page.
func ParseDetail(doc *goquery.Document) cache.FilmMetadata {
	var m cache.FilmMetadata
	texts := strippedStrings(doc.Selection)

	for _, t := range texts {
		if sub := runtimeRe.FindStringSubmatch(t); sub != nil {
			if n, err := strconv.Atoi(sub[1]); err == nil && n > 0 {
				m.RuntimeMinutes = n
				break
			}
		}
	}

	if cast := labelled(texts, "starring"); cast != "" {
		for _, name := range strings.Split(cast, ",") {
			if name = strings.TrimSpace(name); name != "" {
				m.Cast = append(m.Cast, name)
			}
		}
	}
	m.Director = labelled(texts, "director")

	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapse(p.Text())
		if len(text) > minSynopsisLen && !skipSynopsis(text) {
			m.Synopsis = text
			return false
		}
		return true
	})
	if m.Synopsis == "" {
		doc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
			text := collapse(div.Text())
			if len(text) > minSynopsisLen && len(text) < maxSynopsisLen && !skipSynopsis(text) {
				m.Synopsis = text
				return false
			}
			return true
		})
	}
	return m
}

// labelled finds the first "Label: value" string and returns value.
func labelled(texts []string, label string) string {
	for _, t := range texts {
		if !strings.Contains(strings.ToLower(t), label) {
			continue
		}
		_, value, ok := strings.Cut(t, ":")
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); len(value) > 3 {
			return value
		}
	}
	return ""
}

func skipSynopsis(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range synopsisSkips {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// strippedStrings returns every non-blank text node under sel in document
// order, ignoring script and style contents.
func strippedStrings(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := collapse(n.Data); t != "" {
				out = append(out, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}
