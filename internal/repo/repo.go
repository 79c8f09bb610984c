package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mdversion/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("revision conflict")
	ErrDuplicate = errors.New("already exists")
)

const tsLayout = time.RFC3339Nano

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// ExistsByIdentity reports whether a document with this identity is stored.
func (r Repo) ExistsByIdentity(ctx context.Context, docType, name string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE doc_type=? AND name=?`, docType, name).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByIdentity loads the full aggregate.
func (r Repo) FindByIdentity(ctx context.Context, docType, name string) (*domain.MetadataDocument, error) {
	return r.FindByIdentityTx(ctx, nil, docType, name)
}

func (r Repo) FindByIdentityTx(ctx context.Context, tx *sql.Tx, docType, name string) (*domain.MetadataDocument, error) {
	q := r.q(tx)
	var (
		id                   int64
		createdAt, updatedAt string
		revision             int64
	)
	err := q.QueryRowContext(ctx, `SELECT id,created_at,updated_at,revision FROM documents WHERE doc_type=? AND name=?`, docType, name).
		Scan(&id, &createdAt, &updatedAt, &revision)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	versions, err := r.loadVersions(ctx, q, id, docType, name)
	if err != nil {
		return nil, err
	}
	created, err := parseTS(createdAt)
	if err != nil {
		return nil, domain.CorruptDocument(docType, name, 0, fmt.Errorf("created_at: %w", err))
	}
	updated, err := parseTS(updatedAt)
	if err != nil {
		return nil, domain.CorruptDocument(docType, name, 0, fmt.Errorf("updated_at: %w", err))
	}
	return domain.RestoreDocument(docType, name, versions, created, updated, revision)
}

func (r Repo) loadVersions(ctx context.Context, q querier, documentID int64, docType, name string) ([]domain.Version, error) {
	rows, err := q.QueryContext(ctx, `SELECT version_number,content_json,author,change_summary,publishing_state,is_active,created_at
FROM versions WHERE document_id=? ORDER BY version_number`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Version
	for rows.Next() {
		var (
			number            int
			content, author   string
			summary, stateRaw string
			active            bool
			createdAt         string
		)
		if err := rows.Scan(&number, &content, &author, &summary, &stateRaw, &active, &createdAt); err != nil {
			return nil, err
		}
		state, err := domain.ParsePublishingState(stateRaw)
		if err != nil {
			return nil, domain.CorruptDocument(docType, name, number, err)
		}
		created, err := parseTS(createdAt)
		if err != nil {
			return nil, domain.CorruptDocument(docType, name, number, fmt.Errorf("created_at: %w", err))
		}
		v, err := domain.NewVersion(number, []byte(content), author, created, summary, state, active)
		if err != nil {
			return nil, domain.CorruptDocument(docType, name, number, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Save inserts a new document and all of its versions.
func (r Repo) Save(ctx context.Context, tx *sql.Tx, doc *domain.MetadataDocument) error {
	q := r.q(tx)
	res, err := q.ExecContext(ctx, `INSERT INTO documents(doc_type,name,created_at,updated_at,revision) VALUES (?,?,?,?,1)`,
		doc.Type(), doc.Name(), formatTS(doc.CreatedAt()), formatTS(doc.UpdatedAt()))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, v := range doc.Versions() {
		if err := insertVersion(ctx, q, id, v); err != nil {
			return err
		}
	}
	doc.SetRevision(1)
	return nil
}

// Update persists changes to an existing document. It fails with ErrConflict when the stored
// revision no longer matches the one the document was loaded with.
func (r Repo) Update(ctx context.Context, tx *sql.Tx, doc *domain.MetadataDocument) error {
	q := r.q(tx)
	res, err := q.ExecContext(ctx, `UPDATE documents SET updated_at=?, revision=revision+1 WHERE doc_type=? AND name=? AND revision=?`,
		formatTS(doc.UpdatedAt()), doc.Type(), doc.Name(), doc.Revision())
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	var id int64
	var stored int
	if err := q.QueryRowContext(ctx, `SELECT d.id, (SELECT COALESCE(MAX(version_number),0) FROM versions v WHERE v.document_id=d.id)
FROM documents d WHERE d.doc_type=? AND d.name=?`, doc.Type(), doc.Name()).Scan(&id, &stored); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `UPDATE versions SET is_active=0 WHERE document_id=? AND is_active=1`, id); err != nil {
		return fmt.Errorf("clear active version: %w", err)
	}
	for _, v := range doc.Versions() {
		if v.Number() > stored {
			if err := insertVersion(ctx, q, id, v); err != nil {
				return err
			}
			continue
		}
		if _, err := q.ExecContext(ctx, `UPDATE versions SET publishing_state=?, is_active=? WHERE document_id=? AND version_number=?`,
			v.State().String(), v.IsActive(), id, v.Number()); err != nil {
			return fmt.Errorf("update version %d: %w", v.Number(), err)
		}
	}
	doc.SetRevision(doc.Revision() + 1)
	return nil
}

func insertVersion(ctx context.Context, q querier, documentID int64, v domain.Version) error {
	_, err := q.ExecContext(ctx, `INSERT INTO versions(document_id,version_number,content_json,author,change_summary,publishing_state,is_active,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		documentID, v.Number(), string(v.Content()), v.Author(), v.ChangeSummary(), v.State().String(), v.IsActive(), formatTS(v.CreatedAt()))
	if err != nil {
		return fmt.Errorf("insert version %d: %w", v.Number(), err)
	}
	return nil
}

// DocumentFilters narrows ListDocuments. Pagination is keyset on (type, name).
type DocumentFilters struct {
	Type      string
	Limit     int
	AfterType string
	AfterName string
}

const summaryColumns = `d.doc_type, d.name, d.created_at, d.updated_at,
  (SELECT COUNT(*) FROM versions v WHERE v.document_id=d.id),
  (SELECT COALESCE(MAX(v.version_number),0) FROM versions v WHERE v.document_id=d.id),
  (SELECT v.version_number FROM versions v WHERE v.document_id=d.id AND v.is_active=1)`

func scanSummary(scan func(dest ...any) error) (domain.DocumentSummary, error) {
	var s domain.DocumentSummary
	var active sql.NullInt64
	if err := scan(&s.Type, &s.Name, &s.CreatedAt, &s.UpdatedAt, &s.VersionCount, &s.LatestVersion, &active); err != nil {
		return s, err
	}
	if active.Valid {
		n := int(active.Int64)
		s.ActiveVersion = &n
	}
	return s, nil
}

// ListDocuments returns document summaries ordered by type then name.
func (r Repo) ListDocuments(ctx context.Context, f DocumentFilters) ([]domain.DocumentSummary, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "d.doc_type=?")
		args = append(args, f.Type)
	}
	if f.AfterType != "" {
		clauses = append(clauses, "(d.doc_type > ? OR (d.doc_type = ? AND d.name > ?))")
		args = append(args, f.AfterType, f.AfterType, f.AfterName)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM documents d WHERE %s ORDER BY d.doc_type, d.name LIMIT ?`, summaryColumns, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DocumentSummary
	for rows.Next() {
		s, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetDocumentSummary returns the list view of a single document.
func (r Repo) GetDocumentSummary(ctx context.Context, docType, name string) (domain.DocumentSummary, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM documents d WHERE d.doc_type=? AND d.name=?`, docType, name)
	s, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
