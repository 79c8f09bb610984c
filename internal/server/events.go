package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"mdversion/internal/domain"
	"mdversion/internal/engine"
	"mdversion/internal/repo"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log",
		Description: "Newest first, paged with cursor. With after, returns events following that id in ascending order.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
		After   int64  `query:"after" minimum:"0"`
		Type    string `query:"type"`
		DocType string `query:"doc_type"`
		DocName string `query:"doc_name"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var (
			items []domain.Event
			err   error
		)
		if input.After > 0 {
			items, err = e.EventsAfter(ctx, limit, input.After)
		} else {
			var cursor int64
			if input.Cursor != "" {
				cursor, err = strconv.ParseInt(input.Cursor, 10, 64)
				if err != nil || cursor <= 0 {
					return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
				}
			}
			items, err = e.LatestEvents(ctx, repo.EventFilters{
				Limit:   limit + 1,
				Cursor:  cursor,
				Type:    input.Type,
				DocType: input.DocType,
				DocName: input.DocName,
			})
		}
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: make([]EventResponse, 0, len(items))}
		if input.After == 0 && len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
