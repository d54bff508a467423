package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a fetched page stays fresh before the next
// poll refetches it.
const DefaultCacheTTL = 6 * time.Hour

// CachedFetcher memoizes page fetches so repeated polls of the same feed
// do not hammer the source. The cache is in-process; entries expire on
// their TTL and are re-fetched lazily.
type CachedFetcher struct {
	options *Options
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	pages map[string]cachedPage
}

type cachedPage struct {
	result    *Result
	fetchedAt time.Time
}

// NewCachedFetcher builds a cached fetcher. A zero ttl uses
// DefaultCacheTTL; nil options use DefaultOptions.
func NewCachedFetcher(opts *Options, ttl time.Duration) *CachedFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{
		options: opts,
		ttl:     ttl,
		now:     time.Now,
		pages:   make(map[string]cachedPage),
	}
}

// CachedResult extends Result with cache provenance.
type CachedResult struct {
	*Result
	FromCache bool
}

// Fetch retrieves a URL, serving from cache while the entry is fresh.
// Failed fetches are not cached.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	f.mu.Lock()
	if page, ok := f.pages[urlStr]; ok && f.now().Sub(page.fetchedAt) < f.ttl {
		f.mu.Unlock()
		return &CachedResult{Result: page.result, FromCache: true}, nil
	}
	f.mu.Unlock()

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.pages[urlStr] = cachedPage{result: result, fetchedAt: f.now()}
	f.mu.Unlock()

	return &CachedResult{Result: result, FromCache: false}, nil
}

// Invalidate drops a cache entry so the next Fetch goes to the source.
func (f *CachedFetcher) Invalidate(urlStr string) {
	f.mu.Lock()
	delete(f.pages, urlStr)
	f.mu.Unlock()
}
