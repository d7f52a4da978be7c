// Package cdp captures a single page through chromedp, either in a fresh
// headless browser or in a new tab of an already running one.
package cdp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

const defaultTimeout = 30 * time.Second

// Options configures CaptureURL.
type Options struct {
	// RemoteURL attaches to a running browser (http://host:port). Empty
	// launches a headless one.
	RemoteURL string
	Timeout   time.Duration
}

// CaptureURL navigates to url and runs the page capture script once the load
// completes. The tab or browser is closed before returning.
func CaptureURL(ctx context.Context, url string, opts Options) (extract.Page, error) {
	if url == "" {
		return extract.Page{}, cdpcontrol.NewError(cdpcontrol.CodeValidation, "url is required", nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()
	runCtx, runCancel := context.WithTimeout(tabCtx, opts.Timeout)
	defer runCancel()

	slog.Info("capturing page", "url", url, "remote", opts.RemoteURL != "")

	var raw string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Evaluate(cdpcontrol.CaptureExpression(), &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return extract.Page{}, captureError(err)
	}

	var page extract.Page
	if err := cdpcontrol.DecodeEnvelope([]byte(raw), &page); err != nil {
		return extract.Page{}, err
	}
	return page, nil
}

func captureError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return cdpcontrol.NewError(cdpcontrol.CodeEvalTimeout, "page capture timed out", err)
	}
	return cdpcontrol.NewError(cdpcontrol.CodeCDPUnavailable, "page capture failed", err)
}
