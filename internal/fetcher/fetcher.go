// Package fetcher provides the shared rate-limited HTTP client used by the
// revenue source tiers and the storefront payment probe.
package fetcher

import (
	"context"
	"net/http"
)

// Page is a fetched page. Non-2xx responses are returned as pages, not
// errors, so callers can run block detection on the status and headers.
// URL is the final URL after redirects.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the page came back with a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher fetches single pages.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*Page, error)
}
