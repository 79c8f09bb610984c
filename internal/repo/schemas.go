package repo

import (
	"context"
	"database/sql"
	"fmt"

	"mdversion/internal/domain"
)

const schemaColumns = `doc_type,schema_json,COALESCE(description,''),strict_mode,created_at,updated_at`

func scanSchema(scan func(dest ...any) error) (domain.SchemaDefinition, error) {
	var (
		def                  domain.SchemaDefinition
		raw                  string
		createdAt, updatedAt string
	)
	if err := scan(&def.Type, &raw, &def.Description, &def.StrictMode, &createdAt, &updatedAt); err != nil {
		return def, err
	}
	def.Schema = []byte(raw)
	var err error
	if def.CreatedAt, err = parseTS(createdAt); err != nil {
		return def, fmt.Errorf("schema %s created_at: %w", def.Type, err)
	}
	if def.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return def, fmt.Errorf("schema %s updated_at: %w", def.Type, err)
	}
	return def, nil
}

func (r Repo) InsertSchema(ctx context.Context, tx *sql.Tx, def domain.SchemaDefinition) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO schemas(doc_type,schema_json,description,strict_mode,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		def.Type, string(def.Schema), nullable(def.Description), def.StrictMode, formatTS(def.CreatedAt), formatTS(def.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateSchema replaces the schema body; created_at is preserved.
func (r Repo) UpdateSchema(ctx context.Context, tx *sql.Tx, def domain.SchemaDefinition) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE schemas SET schema_json=?, description=?, strict_mode=?, updated_at=? WHERE doc_type=?`,
		string(def.Schema), nullable(def.Description), def.StrictMode, formatTS(def.UpdatedAt), def.Type)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSchema(ctx context.Context, tx *sql.Tx, docType string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM schemas WHERE doc_type=?`, docType)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetSchema(ctx context.Context, docType string) (domain.SchemaDefinition, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+schemaColumns+` FROM schemas WHERE doc_type=?`, docType)
	def, err := scanSchema(row.Scan)
	if err == sql.ErrNoRows {
		return def, ErrNotFound
	}
	return def, err
}

// LookupSchema reports whether a schema is registered for docType.
func (r Repo) LookupSchema(ctx context.Context, docType string) (domain.SchemaDefinition, bool, error) {
	def, err := r.GetSchema(ctx, docType)
	if err == ErrNotFound {
		return domain.SchemaDefinition{}, false, nil
	}
	if err != nil {
		return domain.SchemaDefinition{}, false, err
	}
	return def, true, nil
}

func (r Repo) ListSchemas(ctx context.Context) ([]domain.SchemaDefinition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+schemaColumns+` FROM schemas ORDER BY doc_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SchemaDefinition
	for rows.Next() {
		def, err := scanSchema(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}
