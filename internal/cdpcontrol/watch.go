package cdpcontrol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Interval between polls of the target list. Defaults to one second.
	Interval time.Duration
	// FirstRun emits Installed instead of Startup as the opening event.
	FirstRun bool
	// Buffer is the event channel capacity. Defaults to 64.
	Buffer int
}

// Watch reports tab lifecycle events until ctx is done, then closes the
// returned channel.
//
// The opening event is Startup (or Installed on first run). A change of the
// head page target emits Activated. A Page.loadEventFired on any tab the
// watcher has attached to emits Updated with Status "complete", and so does a
// same-document URL change of the active tab seen between polls. Events are
// dropped with a warning when the consumer falls behind.
func (c *Client) Watch(ctx context.Context, opts WatchOptions) <-chan TabEvent {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	w := &tabWatcher{
		client:   c,
		out:      make(chan TabEvent, opts.Buffer),
		sessions: make(map[string]string),
	}
	go w.run(ctx, opts)
	return w.out
}

type tabWatcher struct {
	client *Client
	out    chan TabEvent

	mu        sync.Mutex
	closed    bool
	primed    bool
	activeID  string
	activeURL string
	sessions  map[string]string // CDP session ID -> tab ID
}

func (w *tabWatcher) run(ctx context.Context, opts WatchOptions) {
	opening := EventStartup
	if opts.FirstRun {
		opening = EventInstalled
	}
	w.emit(TabEvent{Kind: opening})

	var registeredOn *rawCDP
	unregister := func() {}
	defer func() {
		unregister()
		w.close()
	}()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		w.poll(ctx)

		if cdp := w.client.raw(); cdp != nil && cdp != registeredOn {
			unregister()
			w.resetSessions()
			unregister = cdp.registerEventHandler(cdproto.EventPageLoadEventFired, w.onLoad)
			registeredOn = cdp
			// Sessions from the previous connection are gone; attach again.
			w.poll(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *tabWatcher) poll(ctx context.Context) {
	tab, err := w.client.ActiveTab(ctx)
	if err != nil {
		slog.Debug("cdpcontrol watch poll failed", "error", err)
		return
	}

	w.mu.Lock()
	primed := w.primed
	switched := tab.TabID != w.activeID
	navigated := !switched && tab.URL != w.activeURL
	w.primed = true
	w.activeID = tab.TabID
	w.activeURL = tab.URL
	w.mu.Unlock()

	// The opening event already covers the tab that was active at start.
	if primed {
		switch {
		case switched:
			w.emit(TabEvent{Kind: EventActivated, TabID: tab.TabID, Active: true})
		case navigated:
			w.emit(TabEvent{Kind: EventUpdated, TabID: tab.TabID, Status: StatusComplete, Active: true})
		}
	}

	sessionID, err := w.client.enableLoadEvents(ctx, tab.TabID)
	if err != nil {
		slog.Warn("cdpcontrol watch attach failed", "tab_id", tab.TabID, "error", err)
		return
	}
	w.mu.Lock()
	w.sessions[sessionID] = tab.TabID
	w.mu.Unlock()
}

// onLoad runs on the CDP read loop and must not block.
func (w *tabWatcher) onLoad(sessionID string, _ json.RawMessage) {
	w.mu.Lock()
	tabID, ok := w.sessions[sessionID]
	active := tabID == w.activeID
	w.mu.Unlock()
	if !ok {
		return
	}
	w.emit(TabEvent{Kind: EventUpdated, TabID: tabID, Status: StatusComplete, Active: active})
}

func (w *tabWatcher) resetSessions() {
	w.mu.Lock()
	w.sessions = make(map[string]string)
	w.mu.Unlock()
}

func (w *tabWatcher) emit(ev TabEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.out <- ev:
	default:
		slog.Warn("cdpcontrol watch event dropped", "kind", ev.Kind, "tab_id", ev.TabID)
	}
}

func (w *tabWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.out)
}
