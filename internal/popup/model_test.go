package popup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

type fakeService struct {
	view     controller.View
	err      error
	showBody bool
	saved    string
	saveErr  error
	toggles  int
}

func (f *fakeService) Open(context.Context) (controller.View, error)     { return f.view, f.err }
func (f *fakeService) Rescrape(context.Context) (controller.View, error) { return f.view, f.err }
func (f *fakeService) ShowBody(context.Context) (bool, error)            { return f.showBody, nil }
func (f *fakeService) ToggleShowBody(context.Context) (bool, error) {
	f.toggles++
	f.showBody = !f.showBody
	return f.showBody, nil
}
func (f *fakeService) SaveExport(_ context.Context, dir, format string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = dir + "/Case.html"
	return f.saved, nil
}

type fakeClipboard struct {
	got string
	err error
}

func (c *fakeClipboard) Copy(text string) error {
	c.got = text
	return c.err
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func sampleView() controller.View {
	rec := extract.Record{
		Title:     "00537006 | Case | Salesforce",
		URL:       "https://example.test/lightning/r/Case/1/view",
		Text:      "Customer Account: Acme Corp (123)\nSubject: foo\nActions for 00537006",
		Timestamp: 1700000000000,
	}
	return controller.View{Record: rec, Contacts: extract.DeriveContacts(rec), Live: true}
}

// step applies msg and runs the returned command once, feeding its message
// back into the model.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func loaded(t *testing.T, svc *fakeService, clip Clipboard) Model {
	t.Helper()
	m := NewModel(context.Background(), svc, clip, "/tmp/exports")
	return step(t, m, viewMsg{view: svc.view})
}

func TestViewRendersContacts(t *testing.T) {
	svc := &fakeService{view: sampleView(), showBody: true}
	m := loaded(t, svc, &fakeClipboard{})

	out := m.View()
	for _, want := range []string{
		"Case: 00537006",
		"Customer Account: Acme Corp",
		"Actions for: 00537006",
		"Subject: foo",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestViewWithoutContacts(t *testing.T) {
	rec := extract.Record{Title: "Home", URL: "https://example.test/", Text: "nothing here"}
	svc := &fakeService{view: controller.View{Record: rec, Contacts: extract.DeriveContacts(rec)}}
	m := loaded(t, svc, &fakeClipboard{})
	if out := m.View(); !strings.Contains(out, "No contact details") {
		t.Fatalf("view = %s", out)
	}
}

func TestCopyCaseNumber(t *testing.T) {
	clip := &fakeClipboard{}
	m := loaded(t, &fakeService{view: sampleView()}, clip)

	next, cmd := m.Update(key('c'))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("copy returned no command")
	}
	next, tick := m.Update(cmd())
	m = next.(Model)
	if clip.got != "00537006" {
		t.Fatalf("clipboard = %q", clip.got)
	}
	if !m.copied || tick == nil {
		t.Fatalf("copied = %v, tick = %v", m.copied, tick != nil)
	}
	if !strings.Contains(m.View(), "Copied") {
		t.Fatal("view does not show Copied")
	}

	// A reset from an older copy is ignored.
	next, _ = m.Update(copyResetMsg{seq: m.copySeq - 1})
	m = next.(Model)
	if !m.copied {
		t.Fatal("stale reset cleared the copied label")
	}
	next, _ = m.Update(copyResetMsg{seq: m.copySeq})
	m = next.(Model)
	if m.copied {
		t.Fatal("copied label not reset")
	}
}

func TestCopyFailureBlocksUntilDismissed(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no terminal")}
	svc := &fakeService{view: sampleView()}
	m := loaded(t, svc, clip)

	m = step(t, m, key('c'))
	if m.alert != "Copy failed: no terminal" {
		t.Fatalf("alert = %q", m.alert)
	}
	// Keys other than dismiss are swallowed.
	next, cmd := m.Update(key('b'))
	m = next.(Model)
	if cmd != nil || svc.toggles != 0 {
		t.Fatal("key acted while alert open")
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.alert != "" {
		t.Fatalf("alert = %q after enter", m.alert)
	}
}

func TestToggleBody(t *testing.T) {
	svc := &fakeService{view: sampleView(), showBody: true}
	m := loaded(t, svc, &fakeClipboard{})

	m = step(t, m, key('b'))
	if m.showBody || svc.toggles != 1 {
		t.Fatalf("showBody = %v, toggles = %d", m.showBody, svc.toggles)
	}
	if strings.Contains(m.View(), "Subject: foo") {
		t.Fatal("body rendered while hidden")
	}
}

func TestDownload(t *testing.T) {
	svc := &fakeService{view: sampleView()}
	m := loaded(t, svc, &fakeClipboard{})

	m = step(t, m, key('d'))
	if !strings.Contains(m.status, "/tmp/exports/Case.html") {
		t.Fatalf("status = %q", m.status)
	}

	svc.saveErr = cdpcontrol.NewError(cdpcontrol.CodeNoData, "No scraped data available", nil)
	m = step(t, m, key('d'))
	if m.alert != "No scraped data available" {
		t.Fatalf("alert = %q", m.alert)
	}
}

func TestRescrapeWarningAndErrors(t *testing.T) {
	view := sampleView()
	view.Live = false
	view.Warning = "Scraping is restricted to https://example.test/ — showing last saved scrape."
	svc := &fakeService{view: view}
	m := loaded(t, svc, &fakeClipboard{})
	if m.alert != view.Warning {
		t.Fatalf("alert = %q", m.alert)
	}
	if !m.hasView {
		t.Fatal("cached view not kept under the warning")
	}

	tests := []struct {
		err  error
		want string
	}{
		{cdpcontrol.NewError(cdpcontrol.CodeTabNotFound, "no active tab found", nil), "No active tab found"},
		{cdpcontrol.NewError(cdpcontrol.CodeOriginNotAllowed, "Scraping is restricted to https://example.test/", nil), "Scraping is restricted to https://example.test/"},
		{errors.New("boom"), "Scrape failed: boom"},
	}
	for _, tt := range tests {
		m := NewModel(context.Background(), &fakeService{err: tt.err}, &fakeClipboard{}, "")
		m = step(t, m, key('r'))
		if m.alert != tt.want {
			t.Fatalf("alert = %q, want %q", m.alert, tt.want)
		}
	}
}

func TestOpenWithoutDataIsQuiet(t *testing.T) {
	svc := &fakeService{err: cdpcontrol.NewError(cdpcontrol.CodeNoData, "No scraped data available", nil)}
	m := NewModel(context.Background(), svc, &fakeClipboard{}, "")
	m = step(t, m, viewMsg{err: svc.err})
	if m.alert != "" {
		t.Fatalf("alert = %q, want none on open", m.alert)
	}
	if !strings.Contains(m.View(), "No scraped data available") {
		t.Fatalf("view = %s", m.View())
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), &fakeService{}, &fakeClipboard{}, "")
	next, cmd := m.Update(key('q'))
	if !next.(Model).quitting || cmd == nil {
		t.Fatal("q did not quit")
	}
}

func TestOSC52ClipboardWritesEscape(t *testing.T) {
	t.Setenv("TMUX", "")
	var buf bytes.Buffer
	if err := (OSC52Clipboard{W: &buf}).Copy("00537006"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "\x1b]52;c;") {
		t.Fatalf("sequence = %q", buf.String())
	}
}
