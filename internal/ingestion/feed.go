package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/marcus/jobgate/internal/fetch"
	"github.com/marcus/jobgate/internal/types"
)

// feedEntry is one posting summary in a JSON feed. The body text lives
// behind URL and is fetched separately.
type feedEntry struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	Location     string   `json:"location"`
	Remote       bool     `json:"remote"`
	URL          string   `json:"url"`
	Compensation *float64 `json:"compensation,omitempty"`
	DiscoveredAt string   `json:"discovered_at,omitempty"`
}

// FeedSource polls a JSON feed of posting summaries and fetches each
// posting page for its body text.
type FeedSource struct {
	name       string
	feedURL    string
	fetcher    *fetch.CachedFetcher
	useBrowser bool
	now        func() time.Time
}

// FeedOption configures a FeedSource.
type FeedOption func(*FeedSource)

// WithBrowserFallback enables headless-browser rendering for posting
// pages whose HTTP response is an unrendered SPA shell.
func WithBrowserFallback() FeedOption {
	return func(s *FeedSource) { s.useBrowser = true }
}

// WithFeedClock overrides the clock used for missing discovery times.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(s *FeedSource) { s.now = now }
}

// NewFeedSource builds a feed source. name becomes the source component
// of every posting key this source emits.
func NewFeedSource(name, feedURL string, fetcher *fetch.CachedFetcher, opts ...FeedOption) *FeedSource {
	s := &FeedSource{
		name:    name,
		feedURL: feedURL,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *FeedSource) Name() string { return s.name }

// Poll implements Source. Entries whose posting page cannot be fetched
// are skipped with a log line rather than failing the whole poll.
func (s *FeedSource) Poll(ctx context.Context) ([]types.Posting, error) {
	feed, err := fetch.URL(ctx, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	var entries []feedEntry
	if err := json.Unmarshal([]byte(feed.HTML), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse feed JSON: %w", err)
	}

	postings := make([]types.Posting, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			log.Printf("source %s: skipping feed entry with no id", s.name)
			continue
		}

		body, err := s.fetchBody(ctx, entry.URL)
		if err != nil {
			log.Printf("source %s: skipping %s: %v", s.name, entry.ID, err)
			continue
		}

		discoveredAt := s.now()
		if entry.DiscoveredAt != "" {
			if ts, err := time.Parse(time.RFC3339, entry.DiscoveredAt); err == nil {
				discoveredAt = ts
			}
		}

		postings = append(postings, types.Posting{
			Key:          types.PostingKey{Source: s.name, SourceID: entry.ID},
			Title:        entry.Title,
			Organization: entry.Organization,
			Location:     entry.Location,
			Remote:       entry.Remote,
			Compensation: entry.Compensation,
			Body:         body,
			DiscoveredAt: discoveredAt,
		})
	}
	return postings, nil
}

func (s *FeedSource) fetchBody(ctx context.Context, urlStr string) (string, error) {
	if urlStr == "" {
		return "", fmt.Errorf("feed entry has no URL")
	}

	page, err := s.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return "", err
	}

	platform := fetch.DetectPlatform(urlStr)
	text, err := fetch.ExtractMainText(page.HTML,
		fetch.PlatformContentSelectors(platform),
		fetch.PlatformNoiseSelectors(platform)...)
	if err != nil {
		return "", fmt.Errorf("failed to extract posting text: %w", err)
	}

	if s.useBrowser && fetch.ShouldUseBrowser(text) {
		html, err := fetch.WithBrowser(ctx, urlStr, fetch.DefaultTimeout)
		if err != nil {
			// Fall back to whatever the HTTP fetch produced.
			log.Printf("source %s: browser rendering failed for %s: %v", s.name, urlStr, err)
		} else if rendered, err := fetch.ExtractMainText(html,
			fetch.PlatformContentSelectors(platform),
			fetch.PlatformNoiseSelectors(platform)...); err == nil {
			text = rendered
		}
	}

	return CleanText(text), nil
}
