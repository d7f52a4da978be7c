package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerPreferenceHandlers(api huma.API, svc Service) {
	type showBodyOutput struct {
		Body struct {
			ShowBody bool `json:"show_body"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-show-body", Method: http.MethodGet, Path: "/api/v1/preferences/show-body", Summary: "Get raw text visibility", Tags: []string{"Preferences"}},
		func(ctx context.Context, input *struct{}) (*showBodyOutput, error) {
			v, err := svc.ShowBody(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &showBodyOutput{}
			out.Body.ShowBody = v
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-show-body", Method: http.MethodPut, Path: "/api/v1/preferences/show-body", Summary: "Set raw text visibility", Tags: []string{"Preferences"}},
		func(ctx context.Context, input *struct {
			Body struct {
				ShowBody bool `json:"show_body" doc:"Show the raw page text in the popup"`
			}
		}) (*showBodyOutput, error) {
			if err := svc.SetShowBody(ctx, input.Body.ShowBody); err != nil {
				return nil, mapErr(err)
			}
			out := &showBodyOutput{}
			out.Body.ShowBody = input.Body.ShowBody
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-show-body", Method: http.MethodPost, Path: "/api/v1/preferences/show-body/toggle", Summary: "Toggle raw text visibility", Tags: []string{"Preferences"}},
		func(ctx context.Context, input *struct{}) (*showBodyOutput, error) {
			v, err := svc.ToggleShowBody(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &showBodyOutput{}
			out.Body.ShowBody = v
			return out, nil
		})
}
