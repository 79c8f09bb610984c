// Package events appends audit records inside the caller's transaction.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	DocumentCreated     = "document.created"
	VersionCreated      = "version.created"
	VersionActivated    = "version.activated"
	VersionStateChanged = "version.state_changed"
	SchemaCreated       = "schema.created"
	SchemaUpdated       = "schema.updated"
	SchemaDeleted       = "schema.deleted"
	APIKeyCreated       = "apikey.created"
	APIKeyDeleted       = "apikey.deleted"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Record is one audit entry to append.
type Record struct {
	Type          string
	DocType       string
	DocName       string
	EntityKind    string
	EntityID      string
	ActorID       string
	CorrelationID string
	Payload       EventPayload
}

type correlationKey struct{}

// WithCorrelationID stores the request correlation id for events appended under ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if rec.Payload == nil {
		rec.Payload = EventPayload{}
	}
	if rec.CorrelationID == "" {
		rec.CorrelationID = CorrelationID(ctx)
	}
	if rec.ActorID == "" {
		rec.ActorID = "system"
	}
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,doc_type,doc_name,entity_kind,entity_id,actor_id,correlation_id,payload_json) VALUES (?,?,?,?,?,?,?,?,?)`,
		ts, rec.Type, nullable(rec.DocType), nullable(rec.DocName), rec.EntityKind, nullable(rec.EntityID), rec.ActorID, nullable(rec.CorrelationID), string(data))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", rec.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
