// Package trigger scrapes the active tab in response to tab lifecycle
// events and stores the result.
package trigger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/extract"
	"github.com/dgnsrekt/casewatch/internal/relay"
)

// TabSource resolves tabs by id or focus.
type TabSource interface {
	ActiveTab(ctx context.Context) (cdpcontrol.TabInfo, error)
	Tab(ctx context.Context, tabID string) (cdpcontrol.TabInfo, error)
}

// Scraper captures and extracts one tab.
type Scraper interface {
	Scrape(ctx context.Context, tabID string) (extract.Record, error)
}

// ResultCache stores the latest record.
type ResultCache interface {
	Set(ctx context.Context, rec extract.Record) error
}

// Publisher broadcasts relay events.
type Publisher interface {
	Publish(evt relay.Event) int
}

// Hook runs after a record is stored. Hook errors are logged only.
type Hook func(ctx context.Context, rec extract.Record) error

// Options wires a Trigger.
type Options struct {
	Tabs    TabSource
	Scraper Scraper
	Cache   ResultCache
	Broker  Publisher
	// Origin is matched as a literal string prefix of the tab URL.
	Origin string
	Hooks  []Hook
}

type Trigger struct {
	tabs    TabSource
	scraper Scraper
	cache   ResultCache
	broker  Publisher
	origin  string
	hooks   []Hook
}

func New(opts Options) *Trigger {
	return &Trigger{
		tabs:    opts.Tabs,
		scraper: opts.Scraper,
		cache:   opts.Cache,
		broker:  opts.Broker,
		origin:  opts.Origin,
		hooks:   opts.Hooks,
	}
}

// OriginAllowed reports whether url starts with origin. An empty origin
// allows nothing.
func OriginAllowed(url, origin string) bool {
	return origin != "" && strings.HasPrefix(url, origin)
}

// Run handles events one at a time until the channel closes or ctx ends.
func (t *Trigger) Run(ctx context.Context, events <-chan cdpcontrol.TabEvent) {
	slog.Info("trigger started", "origin", t.origin)
	for {
		select {
		case <-ctx.Done():
			slog.Info("trigger stopped", "reason", ctx.Err())
			return
		case ev, ok := <-events:
			if !ok {
				slog.Info("trigger stopped", "reason", "event source closed")
				return
			}
			t.Handle(ctx, ev)
		}
	}
}

// Handle processes one event and reports whether a record was stored.
// Failures are logged and swallowed.
func (t *Trigger) Handle(ctx context.Context, ev cdpcontrol.TabEvent) bool {
	var (
		tab cdpcontrol.TabInfo
		err error
	)
	switch ev.Kind {
	case cdpcontrol.EventActivated:
		tab, err = t.tabs.Tab(ctx, ev.TabID)
	case cdpcontrol.EventUpdated:
		if ev.Status != cdpcontrol.StatusComplete || !ev.Active {
			return false
		}
		tab, err = t.tabs.Tab(ctx, ev.TabID)
	case cdpcontrol.EventStartup, cdpcontrol.EventInstalled:
		tab, err = t.tabs.ActiveTab(ctx)
	default:
		slog.Debug("trigger ignoring event", "kind", ev.Kind)
		return false
	}
	if err != nil {
		slog.Warn("trigger tab lookup failed", "kind", ev.Kind, "tab_id", ev.TabID, "error", err)
		return false
	}
	return t.scrape(ctx, ev.Kind, tab)
}

func (t *Trigger) scrape(ctx context.Context, kind cdpcontrol.EventKind, tab cdpcontrol.TabInfo) bool {
	if !OriginAllowed(tab.URL, t.origin) {
		slog.Debug("trigger skipping tab outside origin", "kind", kind, "tab_id", tab.TabID, "url", tab.URL)
		return false
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "kind", kind, "tab_id", tab.TabID)

	rec, err := t.scraper.Scrape(ctx, tab.TabID)
	if err != nil {
		log.Warn("trigger scrape failed", "url", tab.URL, "error", err)
		return false
	}
	if !OriginAllowed(rec.URL, t.origin) {
		log.Warn("trigger discarding capture outside origin", "tab_url", tab.URL, "url", rec.URL)
		return false
	}
	if err := t.cache.Set(ctx, rec); err != nil {
		log.Warn("trigger cache write failed", "url", rec.URL, "error", err)
		return false
	}
	log.Info("trigger scrape stored", "url", rec.URL, "title", rec.Title)

	if t.broker != nil {
		evt, err := relay.NewMessage(relay.FeedScraped, rec)
		if err != nil {
			log.Warn("trigger broadcast encode failed", "error", err)
		} else {
			n := t.broker.Publish(evt)
			log.Debug("trigger broadcast sent", "event_id", evt.ID, "clients", n)
		}
	}

	for _, hook := range t.hooks {
		if err := hook(ctx, rec); err != nil {
			log.Warn("trigger post-scrape hook failed", "error", err)
		}
	}
	return true
}
