package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mdversion/internal/domain"
)

// EventFilters narrows LatestEvents. Cursor pages backwards: only ids below it are returned.
type EventFilters struct {
	Limit   int
	Cursor  int64
	Type    string
	DocType string
	DocName string
}

const eventColumns = `id,ts,type,COALESCE(doc_type,''),COALESCE(doc_name,''),entity_kind,COALESCE(entity_id,''),actor_id,COALESCE(correlation_id,''),payload_json`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.DocType, &e.DocName, &e.EntityKind, &e.EntityID, &e.ActorID, &e.CorrelationID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvents returns the newest events first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.DocType != "" {
		clauses = append(clauses, "doc_type=?")
		args = append(args, f.DocType)
	}
	if f.DocName != "" {
		clauses = append(clauses, "doc_name=?")
		args = append(args, f.DocName)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id DESC LIMIT ?`, eventColumns, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
