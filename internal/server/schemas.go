package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"mdversion/internal/engine"
	"mdversion/internal/engine/auth"
)

var schemaErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
}

type schemaBody struct {
	Body SchemaResponse `json:"body"`
}

func registerSchemas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-schema",
		Method:        http.MethodPost,
		Path:          "/schemas",
		Summary:       "Register a content schema for a document type",
		DefaultStatus: http.StatusCreated,
		Errors:        schemaErrors,
	}, func(ctx context.Context, input *struct {
		Body SchemaRequest `json:"body"`
	}) (*schemaBody, error) {
		p, err := requirePermission(ctx, auth.PermSchemaWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if strings.TrimSpace(input.Body.Type) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "type is required", nil)
		}
		def, err := e.CreateSchema(ctx, engine.SchemaInput{
			Type:        input.Body.Type,
			Schema:      input.Body.Schema,
			Description: input.Body.Description,
			StrictMode:  input.Body.StrictMode,
			ActorID:     p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &schemaBody{Body: schemaResponse(def)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-schemas",
		Method:      http.MethodGet,
		Path:        "/schemas",
		Summary:     "List content schemas",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []SchemaResponse `json:"body"`
	}, error) {
		defs, err := e.ListSchemas(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]SchemaResponse, 0, len(defs))
		for _, d := range defs {
			out = append(out, schemaResponse(d))
		}
		return &struct {
			Body []SchemaResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-schema",
		Method:      http.MethodGet,
		Path:        "/schemas/{type}",
		Summary:     "Get the schema for a document type",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*schemaBody, error) {
		def, err := e.GetSchema(ctx, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &schemaBody{Body: schemaResponse(def)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-schema",
		Method:      http.MethodPut,
		Path:        "/schemas/{type}",
		Summary:     "Replace the schema for a document type",
		Errors:      schemaErrors,
	}, func(ctx context.Context, input *struct {
		Type string        `path:"type"`
		Body SchemaRequest `json:"body"`
	}) (*schemaBody, error) {
		p, err := requirePermission(ctx, auth.PermSchemaWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Type != "" && !strings.EqualFold(strings.TrimSpace(input.Body.Type), strings.TrimSpace(input.Type)) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body type does not match path", map[string]any{
				"path": input.Type,
				"body": input.Body.Type,
			})
		}
		def, err := e.UpdateSchema(ctx, engine.SchemaInput{
			Type:        input.Type,
			Schema:      input.Body.Schema,
			Description: input.Body.Description,
			StrictMode:  input.Body.StrictMode,
			ActorID:     p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &schemaBody{Body: schemaResponse(def)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-schema",
		Method:        http.MethodDelete,
		Path:          "/schemas/{type}",
		Summary:       "Remove the schema for a document type",
		DefaultStatus: http.StatusNoContent,
		Errors:        schemaErrors,
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*struct{}, error) {
		p, err := requirePermission(ctx, auth.PermSchemaWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteSchema(ctx, input.Type, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
