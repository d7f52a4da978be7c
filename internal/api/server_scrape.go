package api

import (
	"context"
	"mime"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/casewatch/internal/controller"
	"github.com/dgnsrekt/casewatch/internal/extract"
)

func registerScrapeHandlers(api huma.API, svc Service) {
	type viewOutput struct {
		Body controller.View
	}
	type recordOutput struct {
		Body extract.Record
	}

	huma.Register(api, huma.Operation{OperationID: "get-last-scrape", Method: http.MethodGet, Path: "/api/v1/scrape", Summary: "Get the cached scrape", Tags: []string{"Scrape"}},
		func(ctx context.Context, input *struct{}) (*recordOutput, error) {
			rec, err := svc.Last(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &recordOutput{Body: rec}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "rescrape", Method: http.MethodPost, Path: "/api/v1/scrape", Summary: "Scrape the active tab now",
		Description: "Scrapes the active tab when it is on the allowed origin. Off origin the cached scrape is returned with a warning.", Tags: []string{"Scrape"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			view, err := svc.Rescrape(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-popup", Method: http.MethodPost, Path: "/api/v1/scrape/open", Summary: "Open the popup view",
		Description: "Scrapes the active tab when it is on the allowed origin, otherwise returns the cached scrape.", Tags: []string{"Scrape"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			view, err := svc.Open(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	type contactsOutput struct {
		Body struct {
			CaseNumber      string   `json:"caseNumber"`
			CustomerAccount string   `json:"customerAccount"`
			ActionsForIDs   []string `json:"actionsForIds"`
			Lines           []string `json:"lines"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-contacts", Method: http.MethodGet, Path: "/api/v1/scrape/contacts", Summary: "Get contact details of the cached scrape", Tags: []string{"Scrape"}},
		func(ctx context.Context, input *struct{}) (*contactsOutput, error) {
			c, err := svc.Contacts(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &contactsOutput{}
			out.Body.CaseNumber = c.CaseNumber
			out.Body.CustomerAccount = c.CustomerAccount
			out.Body.ActionsForIDs = c.ActionsForIDs
			out.Body.Lines = c.Lines()
			return out, nil
		})

	type exportOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "export-scrape",
		Method:      http.MethodGet,
		Path:        "/api/v1/scrape/export",
		Summary:     "Download the cached scrape",
		Tags:        []string{"Scrape"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Exported page",
				Content: map[string]*huma.MediaType{
					"text/html":     {Schema: &huma.Schema{Type: "string"}},
					"text/plain":    {Schema: &huma.Schema{Type: "string"}},
					"text/markdown": {Schema: &huma.Schema{Type: "string"}},
				},
			},
		},
	}, func(ctx context.Context, input *struct {
		Format string `query:"format" default:"html" enum:"html,text,markdown,safe-html" doc:"Export format"`
	}) (*exportOutput, error) {
		file, err := svc.Export(ctx, input.Format)
		if err != nil {
			return nil, mapErr(err)
		}
		return &exportOutput{
			ContentType:        file.ContentType,
			ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
			Body:               file.Data,
		}, nil
	})
}
