package scrape

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// fetchRendered loads the announcement page in a headless Chromium
// instance and returns the DOM after client-side rendering has settled.
// Used when the publisher moves the announcement into a JS-rendered
// component that a plain GET cannot see.
func (f *Fetcher) fetchRendered(ctx context.Context) (string, error) {
	cctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	cctx, timeoutCancel := context.WithTimeout(cctx, f.timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(f.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(cctx, tasks); err != nil {
		return "", fmt.Errorf("fetch: chromedp run failed: %w", err)
	}

	return html, nil
}
