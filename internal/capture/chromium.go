package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "teachcal/internal/log"
)

// Default capture parameters for the agenda snapshot. The viewport is a
// portrait phone-sized page, which is how the agenda is usually read.
const (
	DefaultWidth      = 430
	DefaultHeight     = 932
	DefaultTimeoutSec = 30
)

var (
	ErrNoURL    = errors.New("capture: URL is required")
	ErrNoOutput = errors.New("capture: OutputPath is required")
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/agenda".
	URL string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration

	// ScrollToNow scrolls the lesson in progress (#now) into view before
	// the screenshot, when the page has one.
	ScrollToNow bool
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return ErrNoURL
	}
	if o.OutputPath == "" {
		return ErrNoOutput
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// AgendaPNG navigates a headless Chromium to opts.URL (typically /agenda
// or /grid), waits for the page root to carry data-ready="true" and writes
// a full-page PNG to opts.OutputPath.
func AgendaPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
	}
	if opts.ScrollToNow {
		tasks = append(tasks, chromedp.Evaluate(
			`(() => { const el = document.getElementById("now"); if (el) el.scrollIntoView({block: "center"}); })()`,
			nil,
		))
	}
	tasks = append(tasks,
		// Let the last paint settle.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("agenda snapshot written",
		"url", opts.URL,
		"output", opts.OutputPath,
		"bytes", len(png),
		"elapsed", time.Since(started),
	)
	return nil
}
