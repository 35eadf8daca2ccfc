// Package feed downloads RSS/Atom feeds and turns their items into
// entries the news job can publish.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultUserAgent    = "gamenewsbot/1.0 (+https://t.me/ForestRoad1)"
	DefaultMaxBodyBytes = 5 << 20
	defaultTimeout      = 20 * time.Second
	acceptHeader        = "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
)

// Entry is one feed item, already reduced to what a post needs.
type Entry struct {
	Link      string
	Title     string
	Summary   string
	ImageURL  string
	Published time.Time
}

type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// SafeClient blocks private, loopback and link-local targets.
	SafeClient bool
}

// Fetcher downloads and parses feeds. It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	var client *http.Client
	if cfg.SafeClient {
		sc := safeurl.GetConfigBuilder().
			SetTimeout(cfg.Timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		client = safeurl.Client(sc).Client
	} else {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{client: client, cfg: cfg}
}

// WithHTTPClient replaces the transport client, mostly for tests.
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	cp := *f
	cp.client = c
	return &cp
}

// Fetch downloads url and returns its entries in feed order. Items without
// a link or guid are dropped.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("feed get: status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("feed parse: %w", err)
	}
	return Entries(parsed), nil
}

// Entries converts parsed items.
func Entries(fd *gofeed.Feed) []Entry {
	if fd == nil {
		return nil
	}
	out := make([]Entry, 0, len(fd.Items))
	for _, it := range fd.Items {
		if it == nil {
			continue
		}
		e, ok := entryFromItem(it)
		if ok {
			out = append(out, e)
		}
	}
	return out
}

func entryFromItem(it *gofeed.Item) (Entry, bool) {
	link := strings.TrimSpace(it.Link)
	if link == "" && strings.HasPrefix(it.GUID, "http") {
		link = strings.TrimSpace(it.GUID)
	}
	if link == "" {
		return Entry{}, false
	}

	summary := it.Description
	if strings.TrimSpace(summary) == "" {
		summary = it.Content
	}

	e := Entry{
		Link:     link,
		Title:    strings.Join(strings.Fields(PlainText(it.Title)), " "),
		Summary:  PlainText(summary),
		ImageURL: ImageURL(it),
	}
	if it.PublishedParsed != nil {
		e.Published = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		e.Published = *it.UpdatedParsed
	}
	return e, true
}
