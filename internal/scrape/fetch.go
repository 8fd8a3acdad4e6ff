package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "github.com/dalbodeule/octofree/internal/log"
)

// DefaultFetchTimeout bounds a single page fetch.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher acquires the announcement page and extracts session descriptors
// from it. It is the only hard-failure point in the acquisition path;
// everything downstream of a successful fetch degrades instead of failing.
type Fetcher struct {
	url      string
	client   *http.Client
	renderJS bool
	timeout  time.Duration
}

// NewFetcher creates a Fetcher for the given announcement page URL.
// timeout <= 0 falls back to DefaultFetchTimeout. renderJS switches the
// fetch to a headless browser for pages that render their announcement
// client-side.
func NewFetcher(url string, timeout time.Duration, renderJS bool) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		renderJS: renderJS,
		timeout:  timeout,
	}
}

// Fetch retrieves the raw page markup.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", errors.New("fetch: URL is empty")
	}

	if f.renderJS {
		return f.fetchRendered(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", err
	}

	appLog.Debug("page fetch start", "url", f.url)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	appLog.Debug("page fetch success", "url", f.url, "bytes", len(body))
	return string(body), nil
}

// Scrape fetches the page and extracts descriptors in one step. A fetch
// failure is logged and yields an empty result for this cycle rather than
// an error; the extractor itself never fails.
func (f *Fetcher) Scrape(ctx context.Context) (Classification, []string) {
	markup, err := f.Fetch(ctx)
	if err != nil {
		appLog.Error("page fetch failed", err, "url", f.url)
		return ClassNone, nil
	}
	return Extract(markup)
}
