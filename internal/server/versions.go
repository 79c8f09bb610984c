package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mdversion/internal/domain"
	"mdversion/internal/engine"
	"mdversion/internal/engine/auth"
)

type versionPath struct {
	Type    string `path:"type"`
	Name    string `path:"name"`
	Version int    `path:"version"`
}

type versionBody struct {
	Body VersionResponse `json:"body"`
}

func registerVersions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-version",
		Method:        http.MethodPost,
		Path:          "/metadata/{type}/{name}/versions",
		Summary:       "Append a new version",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxBodyBytes(e),
		Errors:        documentErrors,
	}, func(ctx context.Context, input *struct {
		Type string               `path:"type"`
		Name string               `path:"name"`
		Body CreateVersionRequest `json:"body"`
	}) (*versionBody, error) {
		p, err := requirePermission(ctx, auth.PermDocumentWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if err := input.Body.Validate(); err != nil {
			return nil, validationError(err)
		}
		res, err := e.CreateNewVersion(ctx, engine.VersionInput{
			Type:          input.Type,
			Name:          input.Name,
			Content:       input.Body.Content,
			Author:        p.ActorID,
			ChangeSummary: input.Body.ChangeSummary,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := versionResponse(res.Version)
		out.Warnings = res.Warnings
		return &versionBody{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-versions",
		Method:      http.MethodGet,
		Path:        "/metadata/{type}/{name}/versions",
		Summary:     "Version history, oldest first",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *identityPath) (*struct {
		Body VersionListResponse `json:"body"`
	}, error) {
		history, err := e.GetVersionHistory(ctx, input.Type, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		docType, name, _ := domain.NormalizeIdentity(input.Type, input.Name)
		return &struct {
			Body VersionListResponse `json:"body"`
		}{Body: VersionListResponse{Type: docType, Name: name, Versions: mapVersions(history)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/metadata/{type}/{name}/versions/{version}",
		Summary:     "Get one version",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *versionPath) (*versionBody, error) {
		v, err := e.GetSpecificVersion(ctx, input.Type, input.Name, input.Version)
		if err != nil {
			return nil, handleError(err)
		}
		return &versionBody{Body: versionResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "activate-version",
		Method:        http.MethodPost,
		Path:          "/metadata/{type}/{name}/versions/{version}/activate",
		Summary:       "Make a version the active one",
		DefaultStatus: http.StatusNoContent,
		Errors:        documentErrors,
	}, func(ctx context.Context, input *versionPath) (*struct{}, error) {
		p, err := requirePermission(ctx, auth.PermVersionActivate)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.ActivateVersion(ctx, input.Type, input.Name, input.Version, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-version",
		Method:      http.MethodPost,
		Path:        "/metadata/{type}/{name}/versions/{version}/state",
		Summary:     "Move a version through its publishing lifecycle",
		Errors:      documentErrors,
	}, func(ctx context.Context, input *struct {
		versionPath
		Body TransitionRequest `json:"body"`
	}) (*versionBody, error) {
		p, err := requirePermission(ctx, auth.PermVersionTransition)
		if err != nil {
			return nil, handleError(err)
		}
		target, err := domain.ParsePublishingState(input.Body.State)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		v, err := e.TransitionVersion(ctx, input.Type, input.Name, input.Version, target, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &versionBody{Body: versionResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-active-version",
		Method:      http.MethodGet,
		Path:        "/metadata/{type}/{name}/active",
		Summary:     "Get the active version",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *identityPath) (*versionBody, error) {
		v, ok, err := e.GetActiveVersion(ctx, input.Type, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "no_active_version", "no active version", map[string]any{
				"type": input.Type,
				"name": input.Name,
			})
		}
		return &versionBody{Body: versionResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compare-versions",
		Method:      http.MethodGet,
		Path:        "/metadata/{type}/{name}/compare",
		Summary:     "Compare the content of two versions",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
		Name string `path:"name"`
		From int    `query:"from" required:"true"`
		To   int    `query:"to" required:"true"`
	}) (*struct {
		Body ComparisonResponse `json:"body"`
	}, error) {
		cmp, err := e.CompareVersions(ctx, input.Type, input.Name, input.From, input.To)
		if err != nil {
			return nil, handleError(err)
		}
		docType, name, _ := domain.NormalizeIdentity(input.Type, input.Name)
		return &struct {
			Body ComparisonResponse `json:"body"`
		}{Body: comparisonResponse(docType, name, cmp)}, nil
	})
}
