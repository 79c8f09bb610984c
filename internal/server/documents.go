package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mdversion/internal/domain"
	"mdversion/internal/engine"
	"mdversion/internal/engine/auth"
	"mdversion/internal/validate"
)

var documentErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

// maxBodyBytes leaves room for the request envelope around content at the configured limit.
func maxBodyBytes(e engine.Engine) int64 {
	limit := validate.DefaultMaxBytes
	if e.Config != nil && e.Config.Limits.MaxContentBytes > 0 {
		limit = e.Config.Limits.MaxContentBytes
	}
	return int64(limit)*2 + 64*1024
}

func validationError(err error) error {
	return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/metadata",
		Summary:       "Create a document with its first version",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  maxBodyBytes(e),
		Errors:        documentErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body VersionResponse `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, auth.PermDocumentWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if err := input.Body.Validate(); err != nil {
			return nil, validationError(err)
		}
		res, err := e.CreateFirstVersion(ctx, engine.VersionInput{
			Type:          input.Body.Type,
			Name:          input.Body.Name,
			Content:       input.Body.Content,
			Author:        p.ActorID,
			ChangeSummary: input.Body.ChangeSummary,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := versionResponse(res.Version)
		out.Warnings = res.Warnings
		return &struct {
			Body VersionResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/metadata",
		Summary:     "List documents",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedDocuments `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		afterType, afterName, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.ListDocuments(ctx, engine.ListOptions{
			Type:      input.Type,
			Limit:     limit + 1,
			AfterType: afterType,
			AfterName: afterName,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedDocuments{Items: items}
		if len(items) > limit {
			last := items[limit-1]
			resp.Items = items[:limit]
			resp.NextCursor = composeCursor(last.Type, last.Name)
		}
		if resp.Items == nil {
			resp.Items = []domain.DocumentSummary{}
		}
		return &struct {
			Body paginatedDocuments `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/metadata/{type}/{name}",
		Summary:     "Get document summary",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *identityPath) (*struct {
		Body domain.DocumentSummary `json:"body"`
	}, error) {
		s, err := e.GetDocument(ctx, input.Type, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentSummary `json:"body"`
		}{Body: s}, nil
	})
}

type identityPath struct {
	Type string `path:"type"`
	Name string `path:"name"`
}
