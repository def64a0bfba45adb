package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters for the shareable daily summary card.
// These should match the layout used by the /card page.
const (
	DefaultWidth      = 600
	DefaultHeight     = 800
	DefaultTimeoutSec = 30
)

// CardOptions defines parameters for a Chromium-based card capture.
type CardOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/card?user=alice".
	URL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration
}

// CaptureCardPNG launches a headless Chromium instance via chromedp,
// navigates to opts.URL (the server's own /card page), waits for the DOM
// to signal that rendering is complete, and returns a PNG screenshot.
//
// Rendering-complete condition:
//   - The /card root element exposes a data-ready attribute:
//     <div data-ready="true" ...>
//   - This function waits until `[data-ready="true"]` is visible before
//     taking the screenshot.
func CaptureCardPNG(parentCtx context.Context, opts CardOptions) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire capture sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		// Wait until /card signals that it has finished rendering via
		// data-ready="true".
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return png, nil
}
