package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

type stubService struct {
	view     controller.View
	last     extract.Record
	err      error
	showBody bool
	format   string
}

func (s *stubService) Origin() string { return "https://example.test/" }
func (s *stubService) Open(ctx context.Context) (controller.View, error) {
	return s.view, s.err
}
func (s *stubService) Rescrape(ctx context.Context) (controller.View, error) {
	return s.view, s.err
}
func (s *stubService) Last(ctx context.Context) (extract.Record, error) { return s.last, s.err }
func (s *stubService) Contacts(ctx context.Context) (extract.Contacts, error) {
	if s.err != nil {
		return extract.Contacts{}, s.err
	}
	return extract.DeriveContacts(s.last), nil
}
func (s *stubService) Export(ctx context.Context, format string) (controller.ExportFile, error) {
	s.format = format
	if s.err != nil {
		return controller.ExportFile{}, s.err
	}
	if format != controller.FormatHTML && format != controller.FormatText {
		return controller.ExportFile{}, cdpcontrol.NewError(cdpcontrol.CodeValidation, "unsupported format", nil)
	}
	return controller.ExportFile{Filename: "Case 00123456.html", ContentType: "text/html; charset=utf-8", Data: []byte(s.last.HTML)}, nil
}
func (s *stubService) ShowBody(ctx context.Context) (bool, error)       { return s.showBody, s.err }
func (s *stubService) SetShowBody(ctx context.Context, show bool) error { s.showBody = show; return s.err }
func (s *stubService) ToggleShowBody(ctx context.Context) (bool, error) {
	s.showBody = !s.showBody
	return s.showBody, s.err
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if strings.Contains(body, "/docs/relay") {
		t.Fatalf("docs still link the relay page")
	}
}
