package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/casewatch/internal/cdpcontrol"
	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/extract"
	"github.com/dgnsrekt/casewatch/internal/relay"
)

type Service interface {
	Origin() string
	Open(ctx context.Context) (controller.View, error)
	Rescrape(ctx context.Context) (controller.View, error)
	Last(ctx context.Context) (extract.Record, error)
	Contacts(ctx context.Context) (extract.Contacts, error)
	Export(ctx context.Context, format string) (controller.ExportFile, error)
	ShowBody(ctx context.Context) (bool, error)
	SetShowBody(ctx context.Context, show bool) error
	ToggleShowBody(ctx context.Context) (bool, error)
}

// NewServer builds the HTTP API. A nil broker leaves the event stream
// unmounted.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Casewatch API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
	}

	registerHealthHandlers(api, svc, broker)
	registerScrapeHandlers(api, svc)
	registerPreferenceHandlers(api, svc)

	return router
}

func registerHealthHandlers(api huma.API, svc Service, broker *relay.Broker) {
	type healthOutput struct {
		Body struct {
			Status     string `json:"status"`
			Origin     string `json:"origin"`
			SSEClients int    `json:"sse_clients"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Origin = svc.Origin()
			if broker != nil {
				out.Body.SSEClients = broker.ClientCount()
			}
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTabNotFound, cdpcontrol.CodeNoData:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeOriginNotAllowed:
			return huma.Error403Forbidden(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
