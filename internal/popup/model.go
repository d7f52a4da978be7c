// Package popup is the terminal rendition of the case popup: the last
// scrape, its contact block and the raw page text.
package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/controller"
)

// copiedFor is how long the copy label reads "Copied".
const copiedFor = 1400 * time.Millisecond

// Service is the slice of controller.Service the popup drives.
type Service interface {
	Open(ctx context.Context) (controller.View, error)
	Rescrape(ctx context.Context) (controller.View, error)
	ShowBody(ctx context.Context) (bool, error)
	ToggleShowBody(ctx context.Context) (bool, error)
	SaveExport(ctx context.Context, dir, format string) (string, error)
}

type (
	viewMsg struct {
		view   controller.View
		err    error
		manual bool
	}
	showBodyMsg struct {
		show bool
		err  error
	}
	copyMsg struct {
		err error
	}
	copyResetMsg struct {
		seq int
	}
	savedMsg struct {
		path string
		err  error
	}
)

// Model is the bubbletea model for the popup.
type Model struct {
	ctx       context.Context
	svc       Service
	clip      Clipboard
	exportDir string

	view     controller.View
	hasView  bool
	loading  bool
	showBody bool
	copied   bool
	copySeq  int
	status   string
	alert    string

	body          viewport.Model
	width, height int
	quitting      bool
}

// NewModel builds the popup. A nil clipboard uses OSC 52 on stderr.
func NewModel(ctx context.Context, svc Service, clip Clipboard, exportDir string) Model {
	if clip == nil {
		clip = OSC52Clipboard{}
	}
	if exportDir == "" {
		exportDir = "."
	}
	return Model{
		ctx:       ctx,
		svc:       svc,
		clip:      clip,
		exportDir: exportDir,
		loading:   true,
		showBody:  true,
		body:      viewport.New(80, 12),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.openCmd(), m.loadShowBodyCmd())
}

func (m Model) openCmd() tea.Cmd {
	return func() tea.Msg {
		v, err := m.svc.Open(m.ctx)
		return viewMsg{view: v, err: err}
	}
}

func (m Model) rescrapeCmd() tea.Cmd {
	return func() tea.Msg {
		v, err := m.svc.Rescrape(m.ctx)
		return viewMsg{view: v, err: err, manual: true}
	}
}

func (m Model) loadShowBodyCmd() tea.Cmd {
	return func() tea.Msg {
		show, err := m.svc.ShowBody(m.ctx)
		return showBodyMsg{show: show, err: err}
	}
}

func (m Model) toggleBodyCmd() tea.Cmd {
	return func() tea.Msg {
		show, err := m.svc.ToggleShowBody(m.ctx)
		return showBodyMsg{show: show, err: err}
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copyMsg{err: m.clip.Copy(text)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	return func() tea.Msg {
		path, err := m.svc.SaveExport(m.ctx, m.exportDir, controller.FormatHTML)
		return savedMsg{path: path, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeBody()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case viewMsg:
		m.loading = false
		if msg.err != nil {
			m.alert = alertFor(msg.err, msg.manual)
			return m, nil
		}
		m.view = msg.view
		m.hasView = true
		m.status = ""
		if msg.view.Warning != "" {
			m.alert = msg.view.Warning
		}
		m.body.SetContent(msg.view.Record.Text)
		m.body.GotoTop()
		return m, nil

	case showBodyMsg:
		// Unreadable preference keeps the body visible.
		if msg.err != nil {
			m.showBody = true
			return m, nil
		}
		m.showBody = msg.show
		return m, nil

	case copyMsg:
		if msg.err != nil {
			m.alert = "Copy failed: " + msg.err.Error()
			return m, nil
		}
		m.copied = true
		m.copySeq++
		seq := m.copySeq
		return m, tea.Tick(copiedFor, func(time.Time) tea.Msg { return copyResetMsg{seq: seq} })

	case copyResetMsg:
		// A newer copy restarted the timer.
		if msg.seq == m.copySeq {
			m.copied = false
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.alert = alertFor(msg.err, true)
			return m, nil
		}
		m.status = "Saved " + msg.path
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	// An open alert swallows keys until dismissed.
	if m.alert != "" {
		switch msg.String() {
		case "enter", "esc", " ":
			m.alert = ""
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.loading = true
		return m, m.rescrapeCmd()
	case "c":
		caseNumber := m.view.Contacts.CaseNumber
		if !m.hasView || caseNumber == "" {
			return m, nil
		}
		return m, m.copyCmd(caseNumber)
	case "d":
		return m, m.saveCmd()
	case "b":
		return m, m.toggleBodyCmd()
	}

	if m.showBody {
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resizeBody() {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	h := m.height - 14
	if h < 3 {
		h = 3
	}
	m.body.Width = w
	m.body.Height = h
}

// alertFor turns a service error into the text shown to the user.
func alertFor(err error, manual bool) string {
	switch cdpcontrol.ErrorCode(err) {
	case cdpcontrol.CodeNoData:
		if !manual {
			return ""
		}
		return "No scraped data available"
	case cdpcontrol.CodeTabNotFound:
		return "No active tab found"
	case cdpcontrol.CodeOriginNotAllowed:
		var coded *cdpcontrol.CodedError
		if errors.As(err, &coded) {
			return coded.Message
		}
	}
	return "Scrape failed: " + err.Error()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.alert != "" {
		return alertStyle.Render(warningStyle.Render(m.alert)+"\n\n"+dimStyle.Render("[enter] ok")) + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("casewatch"))
	b.WriteString("\n")

	switch {
	case m.loading && !m.hasView:
		b.WriteString(dimStyle.Render("Loading..."))
		b.WriteString("\n")
	case !m.hasView:
		b.WriteString(dimStyle.Render("No scraped data available"))
		b.WriteString("\n")
	default:
		m.renderRecord(&b)
	}

	if m.status != "" {
		b.WriteString(dimStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderRecord(b *strings.Builder) {
	rec := m.view.Record
	b.WriteString(labelStyle.Render("URL: ") + rec.URL + "\n")
	b.WriteString(labelStyle.Render("Title: ") + rec.Title + "\n")
	if !m.view.Live {
		b.WriteString(dimStyle.Render(fmt.Sprintf("saved %s", time.UnixMilli(rec.Timestamp).Format(time.DateTime))) + "\n")
	}

	b.WriteString(sectionStyle.Render("Contacts"))
	b.WriteString("\n")
	c := m.view.Contacts
	if c.CaseNumber != "" {
		copyLabel := footerKeyStyle.Render("[c] Copy")
		if m.copied {
			copyLabel = copiedStyle.Render("Copied")
		}
		b.WriteString("Case: " + c.CaseNumber + "  " + copyLabel + "\n")
	}
	if c.CustomerAccount != "" {
		b.WriteString("Customer Account: " + c.CustomerAccount + "\n")
	}
	if len(c.ActionsForIDs) > 0 {
		b.WriteString("Actions for: " + strings.Join(c.ActionsForIDs, ", ") + "\n")
	}
	if c.Empty() {
		b.WriteString("No contact details\n")
	}

	if m.showBody {
		b.WriteString(sectionStyle.Render("Page text"))
		b.WriteString("\n")
		b.WriteString(m.body.View())
		b.WriteString("\n")
	}
}

func (m Model) renderFooter() string {
	bodyLabel := "hide body"
	if !m.showBody {
		bodyLabel = "show body"
	}
	keys := []string{
		footerKeyStyle.Render("[r]") + " refresh",
		footerKeyStyle.Render("[c]") + " copy case",
		footerKeyStyle.Render("[d]") + " download",
		footerKeyStyle.Render("[b]") + " " + bodyLabel,
		footerKeyStyle.Render("[q]") + " quit",
	}
	return footerStyle.Render(strings.Join(keys, "  "))
}
