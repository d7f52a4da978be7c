// Package capture runs the page capture script on a tab and turns the raw
// page into an extraction record.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

// Runner executes the capture script in a tab's page context.
type Runner interface {
	Capture(ctx context.Context, tabID string) (extract.Page, error)
}

// Engine pairs a Runner with the DOM-mode heuristic.
type Engine struct {
	runner       Runner
	maxHTMLBytes int
	now          func() time.Time
}

// NewEngine builds an Engine. maxHTMLBytes <= 0 keeps the full markup.
func NewEngine(runner Runner, maxHTMLBytes int) *Engine {
	return &Engine{runner: runner, maxHTMLBytes: maxHTMLBytes, now: time.Now}
}

// Scrape captures one tab and extracts a record from it. Runner errors are
// returned unchanged so their codes survive.
func (e *Engine) Scrape(ctx context.Context, tabID string) (extract.Record, error) {
	start := e.now()
	page, err := e.runner.Capture(ctx, tabID)
	if err != nil {
		return extract.Record{}, err
	}
	rec := e.Extract(page)
	slog.Debug("capture scrape done",
		"tab_id", tabID,
		"url", rec.URL,
		"html_bytes", len(rec.HTML),
		"actions", len(rec.ActionsForIDs),
		"emails", len(rec.ContactEmails),
		"elapsed", e.now().Sub(start),
	)
	return rec, nil
}

// Extract runs the heuristic over an already captured page. Extraction sees
// the full markup; only the stored copy is truncated.
func (e *Engine) Extract(page extract.Page) extract.Record {
	if page.Timestamp == 0 {
		page.Timestamp = e.now().UnixMilli()
	}
	rec := extract.Run(page)

	if html, truncated, size, sum := truncateStringBytes(rec.HTML, e.maxHTMLBytes); truncated {
		slog.Warn("capture html truncated",
			"url", rec.URL,
			"original_bytes", size,
			"kept_bytes", len(html),
			"sha256", sum,
		)
		rec.HTML = html
	}
	return rec.Normalize()
}
