package cdpcontrol

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"
)

func TestCleanupLockedLogsDetachFailure(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	session := &tabSession{sessionID: "session-1", pageEnabled: true}
	client := &Client{
		cdp: &rawCDP{},
		tabs: map[target.ID]*tabSession{
			"target-1": session,
		},
		order: []target.ID{"target-1"},
	}
	client.cleanupLocked()

	if !strings.Contains(buf.String(), "detach cleanup failed") {
		t.Fatalf("expected detach cleanup debug log, got %q", buf.String())
	}
	if session.sessionID != "" || session.pageEnabled {
		t.Fatalf("session not reset: %+v", session)
	}
	if client.cdp != nil || len(client.tabs) != 0 || client.order != nil {
		t.Fatalf("client state not cleared")
	}
}
