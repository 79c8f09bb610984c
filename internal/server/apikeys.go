package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mdversion/internal/engine"
	"mdversion/internal/engine/auth"
)

func registerAPIKeys(api huma.API, e engine.Engine) {
	keyErrors := []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Issue an API key",
		DefaultStatus: http.StatusCreated,
		Errors:        keyErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, auth.PermAPIKeyManage)
		if err != nil {
			return nil, handleError(err)
		}
		if err := input.Body.Validate(); err != nil {
			return nil, validationError(err)
		}
		key, secret, err := e.CreateAPIKey(ctx, input.Body.ActorID, input.Body.Name, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := apiKeyResponse(key)
		out.Key = secret
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      keyErrors,
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, auth.PermAPIKeyManage); err != nil {
			return nil, handleError(err)
		}
		keys, err := e.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/apikeys/{id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        keyErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, err := requirePermission(ctx, auth.PermAPIKeyManage)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteAPIKey(ctx, input.ID, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
