package cdpcontrol

import (
	"context"
	"testing"
	"time"
)

func nextEvent(t *testing.T, ch <-chan TabEvent) TabEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tab event")
	}
	return TabEvent{}
}

func TestWatchEmitsOpeningAndActivation(t *testing.T) {
	list := &targetList{}
	list.set(pageTarget("tab-a", "https://a/"))
	withDefaultHTTPClient(t, list.roundTrip(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := offlineClient().Watch(ctx, WatchOptions{Interval: 10 * time.Millisecond, FirstRun: true})
	if ev := nextEvent(t, events); ev.Kind != EventInstalled {
		t.Fatalf("first event = %+v, want installed", ev)
	}

	list.set(pageTarget("tab-b", "https://b/"), pageTarget("tab-a", "https://a/"))
	ev := nextEvent(t, events)
	if ev.Kind != EventActivated || ev.TabID != "tab-b" || !ev.Active {
		t.Fatalf("event = %+v, want activated tab-b", ev)
	}

	list.set(pageTarget("tab-b", "https://b/next"), pageTarget("tab-a", "https://a/"))
	ev = nextEvent(t, events)
	if ev.Kind != EventUpdated || ev.TabID != "tab-b" || ev.Status != StatusComplete || !ev.Active {
		t.Fatalf("event = %+v, want updated complete tab-b", ev)
	}

	cancel()
	for range events {
	}
}

func TestWatcherLoadEventsAndClose(t *testing.T) {
	w := &tabWatcher{
		out:      make(chan TabEvent, 1),
		sessions: map[string]string{"s-1": "tab-a", "s-2": "tab-b"},
		activeID: "tab-a",
	}

	w.onLoad("unknown", nil)
	w.onLoad("s-2", nil)
	ev := <-w.out
	if ev.Kind != EventUpdated || ev.TabID != "tab-b" || ev.Active {
		t.Fatalf("event = %+v, want inactive update for tab-b", ev)
	}

	w.onLoad("s-1", nil)
	w.onLoad("s-1", nil) // buffer full, dropped
	if ev := <-w.out; ev.TabID != "tab-a" || !ev.Active {
		t.Fatalf("event = %+v, want active update for tab-a", ev)
	}

	w.close()
	w.onLoad("s-1", nil) // must not panic after close
	if _, ok := <-w.out; ok {
		t.Fatal("expected closed channel")
	}
}
