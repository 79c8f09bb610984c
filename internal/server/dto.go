package server

import (
	"bytes"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mdversion/internal/domain"
)

// Request payloads

type CreateDocumentRequest struct {
	Type          string          `json:"type" example:"loyalty-program"`
	Name          string          `json:"name" example:"gold-tier"`
	Content       json.RawMessage `json:"content"`
	ChangeSummary string          `json:"change_summary,omitempty"`
}

func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Content, validation.By(requireContent)),
		validation.Field(&r.ChangeSummary, validation.Length(0, 500)),
	)
}

type CreateVersionRequest struct {
	Content       json.RawMessage `json:"content"`
	ChangeSummary string          `json:"change_summary,omitempty"`
}

func (r CreateVersionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.By(requireContent)),
		validation.Field(&r.ChangeSummary, validation.Length(0, 500)),
	)
}

func requireContent(v any) error {
	raw := bytes.TrimSpace(v.(json.RawMessage))
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return validation.NewError("validation_content_required", "content is required")
	}
	return nil
}

type TransitionRequest struct {
	State string `json:"state" enum:"DRAFT,APPROVED,PUBLISHED,ARCHIVED"`
}

type SchemaRequest struct {
	Type        string          `json:"type,omitempty" example:"loyalty-program"`
	Schema      json.RawMessage `json:"schema"`
	Description string          `json:"description,omitempty"`
	StrictMode  bool            `json:"strict_mode,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

func (r CreateAPIKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ActorID, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Name, validation.Length(0, 200)),
	)
}

// Response payloads

type VersionResponse struct {
	VersionNumber   int             `json:"version_number"`
	Content         json.RawMessage `json:"content"`
	Author          string          `json:"author"`
	CreatedAt       string          `json:"created_at" format:"date-time"`
	ChangeSummary   string          `json:"change_summary"`
	PublishingState string          `json:"publishing_state" enum:"DRAFT,APPROVED,PUBLISHED,ARCHIVED"`
	IsActive        bool            `json:"is_active"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type VersionListResponse struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Versions []VersionResponse `json:"versions"`
}

type ComparisonResponse struct {
	Type               string                `json:"type"`
	Name               string                `json:"name"`
	FromVersion        int                   `json:"from_version"`
	ToVersion          int                   `json:"to_version"`
	HasBreakingChanges bool                  `json:"has_breaking_changes"`
	ChangeCount        int                   `json:"change_count"`
	Summary            domain.ChangeSummary  `json:"summary"`
	Changes            []domain.ChangeDetail `json:"changes"`
}

type paginatedDocuments struct {
	Items      []domain.DocumentSummary `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

type SchemaResponse struct {
	Type        string          `json:"type"`
	Schema      json.RawMessage `json:"schema"`
	Description string          `json:"description,omitempty"`
	StrictMode  bool            `json:"strict_mode"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID            int64           `json:"id"`
	TS            string          `json:"ts" format:"date-time"`
	Type          string          `json:"type"`
	DocType       string          `json:"doc_type,omitempty"`
	DocName       string          `json:"doc_name,omitempty"`
	EntityKind    string          `json:"entity_kind"`
	EntityID      string          `json:"entity_id,omitempty"`
	ActorID       string          `json:"actor_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty" doc:"Plaintext secret, only returned on creation"`
}

func versionResponse(v domain.Version) VersionResponse {
	return VersionResponse{
		VersionNumber:   v.Number(),
		Content:         v.Content(),
		Author:          v.Author(),
		CreatedAt:       v.CreatedAt().Format(time.RFC3339Nano),
		ChangeSummary:   v.ChangeSummary(),
		PublishingState: v.State().String(),
		IsActive:        v.IsActive(),
	}
}

func mapVersions(items []domain.Version) []VersionResponse {
	out := make([]VersionResponse, 0, len(items))
	for _, v := range items {
		out = append(out, versionResponse(v))
	}
	return out
}

func comparisonResponse(docType, name string, c domain.VersionComparison) ComparisonResponse {
	changes := c.Changes()
	if changes == nil {
		changes = []domain.ChangeDetail{}
	}
	return ComparisonResponse{
		Type:               docType,
		Name:               name,
		FromVersion:        c.FromVersion(),
		ToVersion:          c.ToVersion(),
		HasBreakingChanges: c.HasBreakingChanges(),
		ChangeCount:        c.ChangeCount(),
		Summary:            c.Summary(),
		Changes:            changes,
	}
}

func schemaResponse(def domain.SchemaDefinition) SchemaResponse {
	return SchemaResponse{
		Type:        def.Type,
		Schema:      def.Schema,
		Description: def.Description,
		StrictMode:  def.StrictMode,
		CreatedAt:   def.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   def.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage(`{}`)
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:            evt.ID,
		TS:            evt.TS,
		Type:          evt.Type,
		DocType:       evt.DocType,
		DocName:       evt.DocName,
		EntityKind:    evt.EntityKind,
		EntityID:      evt.EntityID,
		ActorID:       evt.ActorID,
		CorrelationID: evt.CorrelationID,
		Payload:       payload,
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}
