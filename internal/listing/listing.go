package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/evenwebb/wtw-cinemas-calendar/internal/config"
	"github.com/mmcdole/gofeed"
)

// ErrNoListings means a page parsed but held no film entries, which on these
// sites means the markup changed rather than that nothing is coming soon.
var ErrNoListings = errors.New("no film listings found")

// Entry is one raw title/date/link triple as it appeared on a listing page.
type Entry struct {
	Title     string
	RawDate   string
	DetailURL string
	SourceID  string
}

type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]Entry, error)
}

// Getter is the part of Client the fetchers need.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTMLFetcher reads a WTW "coming soon" page: each film is an li holding an
// h2 title, a link to /film/..., and a div.times whose first p is the date.
type HTMLFetcher struct {
	client Getter
}

func NewHTMLFetcher(client Getter) *HTMLFetcher {
	return &HTMLFetcher{client: client}
}

func (f *HTMLFetcher) Fetch(ctx context.Context, source config.Source) ([]Entry, error) {
	body, err := f.client.Get(ctx, source.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: source.URL, Err: fmt.Errorf("parsing html: %w", err)}
	}

	var entries []Entry
	doc.Find("div.times").Each(func(_ int, times *goquery.Selection) {
		item := times.Parent()
		title := strings.TrimSpace(item.Find("h2").First().Text())
		if title == "" {
			return
		}
		date := times.Find("p").First()
		if date.Length() == 0 {
			return
		}
		href, _ := item.Find(`a[href*="/film/"]`).First().Attr("href")
		entries = append(entries, Entry{
			Title:     title,
			RawDate:   collapse(date.Text()),
			DetailURL: resolve(source.URL, href),
			SourceID:  source.ID,
		})
	})

	if len(entries) == 0 {
		return nil, &FetchError{URL: source.URL, Err: ErrNoListings}
	}
	return entries, nil
}

// FeedFetcher reads an RSS/Atom listing where each item's title is the film,
// its description holds the release phrase and its link the detail page.
type FeedFetcher struct {
	client Getter
	parser *gofeed.Parser
}

func NewFeedFetcher(client Getter) *FeedFetcher {
	return &FeedFetcher{client: client, parser: gofeed.NewParser()}
}

func (f *FeedFetcher) Fetch(ctx context.Context, source config.Source) ([]Entry, error) {
	body, err := f.client.Get(ctx, source.URL)
	if err != nil {
		return nil, err
	}
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: source.URL, Err: fmt.Errorf("parsing feed: %w", err)}
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		// The publish date says when the item was posted, not when the film
		// opens, so an item without a description carries no release date.
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			RawDate:   collapse(stripTags(item.Description)),
			DetailURL: resolve(source.URL, item.Link),
			SourceID:  source.ID,
		})
	}
	if len(entries) == 0 {
		return nil, &FetchError{URL: source.URL, Err: ErrNoListings}
	}
	return entries, nil
}

// ByType dispatches on config.Source.Type.
type ByType map[string]Fetcher

func NewByType(client Getter) ByType {
	return ByType{
		"html": NewHTMLFetcher(client),
		"rss":  NewFeedFetcher(client),
	}
}

func (b ByType) Fetch(ctx context.Context, source config.Source) ([]Entry, error) {
	f, ok := b[source.Type]
	if !ok {
		return nil, fmt.Errorf("no fetcher for source type %q", source.Type)
	}
	return f.Fetch(ctx, source)
}

func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
