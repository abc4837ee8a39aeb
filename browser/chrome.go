package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Chrome drives a headless Chrome instance over the DevTools protocol.
type Chrome struct {
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	tab         context.Context
}

// Options configures the Chrome launch.
type Options struct {
	Headless  bool
	UserAgent string
}

// NewChrome launches a browser and opens one long-lived tab.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// Force the browser process to start so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Chrome{
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		tab:         tab,
	}, nil
}

// Navigate loads the given URL in the tab.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(c.tab, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible waits for the selector to match a visible element, returning
// ErrLandmarkTimeout when the budget elapses first.
func (c *Chrome) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLandmarkTimeout
	}
	if err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching the selector.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(c.tab, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// SendKeys types text into the first element matching the selector.
func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := chromedp.Run(c.tab,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("send keys to %q: %w", selector, err)
	}
	return nil
}

// HTML returns the rendered document of the current page.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var html string
	if err := chromedp.Run(c.tab, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// CurrentURL reports the location of the current page.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var loc string
	if err := chromedp.Run(c.tab, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Close shuts the tab and the browser process down.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.tab)
	c.cancelTab()
	c.cancelAlloc()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
