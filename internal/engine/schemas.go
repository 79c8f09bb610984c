package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"mdversion/internal/domain"
	"mdversion/internal/events"
	"mdversion/internal/repo"
	"mdversion/internal/validate"
)

// SchemaInput describes a schema to create or replace.
type SchemaInput struct {
	Type        string
	Schema      []byte
	Description string
	StrictMode  bool
	ActorID     string
}

func (in SchemaInput) definition() (domain.SchemaDefinition, error) {
	def := domain.SchemaDefinition{
		Type:        in.Type,
		Schema:      in.Schema,
		Description: in.Description,
		StrictMode:  in.StrictMode,
	}
	if err := def.Validate(); err != nil {
		return domain.SchemaDefinition{}, err
	}
	if _, err := validate.Compile(def.Schema); err != nil {
		return domain.SchemaDefinition{}, err
	}
	return def, nil
}

func (e Engine) CreateSchema(ctx context.Context, in SchemaInput) (domain.SchemaDefinition, error) {
	def, err := in.definition()
	if err != nil {
		return domain.SchemaDefinition{}, err
	}
	def.CreatedAt = e.now()
	def.UpdatedAt = def.CreatedAt

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SchemaDefinition{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSchema(ctx, tx, def); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.SchemaDefinition{}, domain.SchemaAlreadyExists(def.Type)
		}
		return domain.SchemaDefinition{}, err
	}
	if err := e.appendSchemaEvent(ctx, tx, events.SchemaCreated, def, in.ActorID); err != nil {
		return domain.SchemaDefinition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SchemaDefinition{}, err
	}
	return def, nil
}

// UpdateSchema replaces the schema of an existing type. Existing versions are not revalidated.
func (e Engine) UpdateSchema(ctx context.Context, in SchemaInput) (domain.SchemaDefinition, error) {
	def, err := in.definition()
	if err != nil {
		return domain.SchemaDefinition{}, err
	}
	current, err := e.Repo.GetSchema(ctx, def.Type)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SchemaDefinition{}, domain.SchemaNotFound(def.Type)
	}
	if err != nil {
		return domain.SchemaDefinition{}, err
	}
	def.CreatedAt = current.CreatedAt
	def.UpdatedAt = e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SchemaDefinition{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSchema(ctx, tx, def); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.SchemaDefinition{}, domain.SchemaNotFound(def.Type)
		}
		return domain.SchemaDefinition{}, err
	}
	if err := e.appendSchemaEvent(ctx, tx, events.SchemaUpdated, def, in.ActorID); err != nil {
		return domain.SchemaDefinition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SchemaDefinition{}, err
	}
	return def, nil
}

func (e Engine) GetSchema(ctx context.Context, docType string) (domain.SchemaDefinition, error) {
	docType = normalizeSchemaType(docType)
	def, err := e.Repo.GetSchema(ctx, docType)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SchemaDefinition{}, domain.SchemaNotFound(docType)
	}
	return def, err
}

func (e Engine) ListSchemas(ctx context.Context) ([]domain.SchemaDefinition, error) {
	return e.Repo.ListSchemas(ctx)
}

func (e Engine) DeleteSchema(ctx context.Context, docType, actorID string) error {
	docType = normalizeSchemaType(docType)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteSchema(ctx, tx, docType); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.SchemaNotFound(docType)
		}
		return err
	}
	if err := e.appendSchemaEvent(ctx, tx, events.SchemaDeleted, domain.SchemaDefinition{Type: docType}, actorID); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) appendSchemaEvent(ctx context.Context, tx *sql.Tx, typ string, def domain.SchemaDefinition, actorID string) error {
	return e.Events.Append(ctx, tx, events.Record{
		Type:       typ,
		DocType:    def.Type,
		EntityKind: "schema",
		EntityID:   def.Type,
		ActorID:    actorID,
		Payload:    events.EventPayload{"strict_mode": def.StrictMode},
	})
}

func normalizeSchemaType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
