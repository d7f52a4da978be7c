package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/extract"
	"github.com/dgnsrekt/casewatch/internal/relay"
	"github.com/dgnsrekt/casewatch/internal/trigger"
)

const noDataMessage = "No scraped data available"

// Tabs resolves the focused tab.
type Tabs interface {
	ActiveTab(ctx context.Context) (cdpcontrol.TabInfo, error)
}

// Scraper captures and extracts one tab.
type Scraper interface {
	Scrape(ctx context.Context, tabID string) (extract.Record, error)
}

// Store is the result cache plus preferences.
type Store interface {
	Get(ctx context.Context) (extract.Record, bool, error)
	Set(ctx context.Context, rec extract.Record) error
	ShowBody(ctx context.Context) (bool, error)
	SetShowBody(ctx context.Context, show bool) error
	ToggleShowBody(ctx context.Context) (bool, error)
}

// Publisher broadcasts relay events.
type Publisher interface {
	Publish(evt relay.Event) int
}

// View is what the presentation surfaces render: a record, its derived
// contacts, and whether it came from a live scrape.
type View struct {
	Record   extract.Record   `json:"record"`
	Contacts extract.Contacts `json:"contacts"`
	Live     bool             `json:"live"`
	Warning  string           `json:"warning,omitempty"`
}

// Service implements the popup operations over a tab source, a scraper and
// the result cache.
type Service struct {
	tabs    Tabs
	scraper Scraper
	store   Store
	broker  Publisher
	origin  string
}

func NewService(tabs Tabs, scraper Scraper, store Store, broker Publisher, origin string) *Service {
	return &Service{tabs: tabs, scraper: scraper, store: store, broker: broker, origin: origin}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// Origin returns the allowed origin prefix.
func (s *Service) Origin() string { return s.origin }

// RestrictedWarning is shown when a manual scrape is refused off origin.
func (s *Service) RestrictedWarning() string {
	return "Scraping is restricted to " + s.origin + " — showing last saved scrape."
}

// Open scrapes the active tab when it is on the allowed origin and falls
// back to the cached record otherwise.
func (s *Service) Open(ctx context.Context) (View, error) {
	tab, err := s.tabs.ActiveTab(ctx)
	switch {
	case err != nil:
		slog.Debug("controller open without active tab", "error", err)
	case trigger.OriginAllowed(tab.URL, s.origin):
		view, scrapeErr := s.scrapeLive(ctx, tab)
		if scrapeErr == nil {
			return view, nil
		}
		slog.Warn("controller live scrape failed, using cache", "tab_id", tab.TabID, "error", scrapeErr)
	default:
		slog.Debug("controller open off origin", "url", tab.URL)
	}
	return s.cachedView(ctx, "")
}

// Rescrape runs a manual scrape of the active tab. Off origin it returns the
// cached record with a warning instead.
func (s *Service) Rescrape(ctx context.Context) (View, error) {
	tab, err := s.tabs.ActiveTab(ctx)
	if err != nil {
		if cdpcontrol.ErrorCode(err) != "" {
			return View{}, err
		}
		return View{}, cdpcontrol.NewError(cdpcontrol.CodeTabNotFound, "no active tab found", err)
	}
	if !trigger.OriginAllowed(tab.URL, s.origin) {
		return s.restrictedView(ctx)
	}
	view, err := s.scrapeLive(ctx, tab)
	if cdpcontrol.ErrorCode(err) == cdpcontrol.CodeOriginNotAllowed {
		return s.restrictedView(ctx)
	}
	return view, err
}

func (s *Service) restrictedView(ctx context.Context) (View, error) {
	view, err := s.cachedView(ctx, s.RestrictedWarning())
	if cdpcontrol.ErrorCode(err) == cdpcontrol.CodeNoData {
		return View{}, cdpcontrol.NewError(cdpcontrol.CodeOriginNotAllowed, "Scraping is restricted to "+s.origin, nil)
	}
	return view, err
}

// scrapeLive captures the tab and stores the record. A capture whose final
// address left the origin is rejected with ORIGIN_NOT_ALLOWED.
func (s *Service) scrapeLive(ctx context.Context, tab cdpcontrol.TabInfo) (View, error) {
	rec, err := s.scraper.Scrape(ctx, tab.TabID)
	if err != nil {
		return View{}, err
	}
	if !trigger.OriginAllowed(rec.URL, s.origin) {
		slog.Warn("controller discarding capture outside origin", "tab_url", tab.URL, "url", rec.URL)
		return View{}, cdpcontrol.NewError(cdpcontrol.CodeOriginNotAllowed, "Scraping is restricted to "+s.origin, nil)
	}

	view := View{Record: rec, Contacts: extract.DeriveContacts(rec), Live: true}
	if err := s.store.Set(ctx, rec); err != nil {
		slog.Warn("controller cache write failed", "url", rec.URL, "error", err)
		view.Warning = "Could not save this scrape: " + err.Error()
		return view, nil
	}

	if s.broker != nil {
		evt, err := relay.NewMessage(relay.FeedScraped, rec)
		if err != nil {
			slog.Warn("controller broadcast encode failed", "error", err)
		} else {
			s.broker.Publish(evt)
		}
	}
	return view, nil
}

func (s *Service) cachedView(ctx context.Context, warning string) (View, error) {
	rec, err := s.Last(ctx)
	if err != nil {
		return View{}, err
	}
	return View{Record: rec, Contacts: extract.DeriveContacts(rec), Warning: warning}, nil
}

// Last returns the cached record or NO_DATA.
func (s *Service) Last(ctx context.Context) (extract.Record, error) {
	rec, ok, err := s.store.Get(ctx)
	if err != nil {
		return extract.Record{}, storageError("read cached scrape", err)
	}
	if !ok {
		return extract.Record{}, cdpcontrol.NewError(cdpcontrol.CodeNoData, noDataMessage, nil)
	}
	return rec, nil
}

// Contacts re-derives the contacts block from the cached record.
func (s *Service) Contacts(ctx context.Context) (extract.Contacts, error) {
	rec, err := s.Last(ctx)
	if err != nil {
		return extract.Contacts{}, err
	}
	return extract.DeriveContacts(rec), nil
}

// CaseNumber returns the case number for the copy action, VALIDATION when
// the cached title has none.
func (s *Service) CaseNumber(ctx context.Context) (string, error) {
	c, err := s.Contacts(ctx)
	if err != nil {
		return "", err
	}
	if err := s.requireNonEmpty(c.CaseNumber, "case number"); err != nil {
		return "", err
	}
	return c.CaseNumber, nil
}

func (s *Service) ShowBody(ctx context.Context) (bool, error) {
	v, err := s.store.ShowBody(ctx)
	if err != nil {
		return v, storageError("read showBody", err)
	}
	return v, nil
}

func (s *Service) SetShowBody(ctx context.Context, show bool) error {
	if err := s.store.SetShowBody(ctx, show); err != nil {
		return storageError("write showBody", err)
	}
	return nil
}

func (s *Service) ToggleShowBody(ctx context.Context) (bool, error) {
	v, err := s.store.ToggleShowBody(ctx)
	if err != nil {
		return v, storageError("toggle showBody", err)
	}
	return v, nil
}

func storageError(op string, err error) error {
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		return err
	}
	return cdpcontrol.NewError(cdpcontrol.CodeStorageFailure, op+" failed", err)
}
