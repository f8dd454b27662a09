// Package crawl visits a site's key pages and feeds their content through
// signal extraction. Fetching is abstracted behind PageFetcher so the crawler
// logic can run against a headless browser, plain HTTP, or a test double.
package crawl

import (
	"context"
	"time"
)

// Page is a snapshot of one navigated page.
type Page struct {
	URL  string
	HTML string
	Text string
}

// Element is a matched DOM element from a selector query.
type Element struct {
	Text    string
	Visible bool
}

// PageFetcher navigates pages within a single site context. Implementations
// keep per-context state (cookies, observed resource requests) so that one
// context maps to one analyzed site.
type PageFetcher interface {
	// Navigate loads the URL within the given timeout and returns its content.
	Navigate(ctx context.Context, url string, timeout time.Duration) (*Page, error)

	// QueryVisible returns elements on the most recently navigated page
	// matching the CSS selector, with a visibility verdict.
	QueryVisible(selector string) []Element

	// NetworkRequestURLs returns the external resource URLs observed while
	// loading pages in this context.
	NetworkRequestURLs() []string

	Close() error
}

// FetcherFactory creates an isolated PageFetcher per site so that state from
// one site never bleeds into another.
type FetcherFactory interface {
	NewContext() (PageFetcher, error)
}
