// Package browser abstracts the page-rendering engine behind the small
// surface the crawl loop needs: navigate, interact, wait, read the
// rendered document.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrLandmarkTimeout reports that a structural landmark did not appear
// within the wait budget. Callers treat this as non-fatal and proceed with
// whatever partial DOM is present.
var ErrLandmarkTimeout = errors.New("browser: landmark wait timed out")

// Driver is the browser capability consumed by the scraper. All blocking
// operations honour the supplied context.
type Driver interface {
	// Navigate loads the given URL in the active tab.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses, in which case it returns ErrLandmarkTimeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// SendKeys focuses the first element matching the selector and types
	// the given text into it.
	SendKeys(ctx context.Context, selector, text string) error
	// HTML returns the rendered document of the current page.
	HTML(ctx context.Context) (string, error)
	// CurrentURL reports the location of the current page.
	CurrentURL(ctx context.Context) (string, error)
	// Close shuts the browser down.
	Close() error
}
