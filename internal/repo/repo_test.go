package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/db"
	"mdversion/internal/domain"
	"mdversion/internal/migrate"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	return Repo{DB: conn}
}

func saveDoc(t *testing.T, r Repo, docType, name string) *domain.MetadataDocument {
	t.Helper()
	doc, err := domain.NewDocument(docType, name, json.RawMessage(`{"v":1}`), "alice", "", t0)
	require.NoError(t, err)
	require.NoError(t, r.Save(context.Background(), nil, doc))
	return doc
}

func TestSaveAndFindRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	saveDoc(t, r, "user", "john")

	found, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Revision())
	assert.Equal(t, 1, found.VersionCount())
	v, ok := found.Version(1)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(v.Content()))
	assert.Equal(t, "alice", v.Author())
	assert.Equal(t, domain.InitialChangeSummary, v.ChangeSummary())
	assert.Equal(t, domain.StatePublished, v.State())
	assert.False(t, v.IsActive())
	assert.True(t, v.CreatedAt().Equal(t0))

	exists, err := r.ExistsByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = r.ExistsByIdentity(ctx, "user", "jane")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = r.FindByIdentity(ctx, "user", "jane")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDuplicate(t *testing.T) {
	r := newTestRepo(t)
	saveDoc(t, r, "user", "john")
	doc, err := domain.NewDocument("user", "john", json.RawMessage(`{}`), "bob", "", t0)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Save(context.Background(), nil, doc), ErrDuplicate)
}

func TestUpdatePersistsVersionsAndActivation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	doc := saveDoc(t, r, "user", "john")

	_, err := doc.AddVersion(json.RawMessage(`{"v":2}`), "bob", "second", t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, doc.ActivateVersion(1, t0.Add(time.Minute)))
	require.NoError(t, r.Update(ctx, nil, doc))
	assert.Equal(t, int64(2), doc.Revision())

	require.NoError(t, doc.ActivateVersion(2, t0.Add(2*time.Minute)))
	_, err = doc.TransitionVersion(1, domain.StateArchived, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, nil, doc))

	found, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	assert.Equal(t, 2, found.VersionCount())
	active, ok := found.ActiveVersion()
	require.True(t, ok)
	assert.Equal(t, 2, active.Number())
	v1, _ := found.Version(1)
	assert.Equal(t, domain.StateArchived, v1.State())
	assert.Equal(t, int64(3), found.Revision())
}

func TestUpdateStaleRevisionConflicts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	saveDoc(t, r, "user", "john")

	a, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	b, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)

	_, err = a.AddVersion(json.RawMessage(`{"from":"a"}`), "a", "", t0)
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, nil, a))

	_, err = b.AddVersion(json.RawMessage(`{"from":"b"}`), "b", "", t0)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Update(ctx, nil, b), ErrConflict)

	found, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	v2, _ := found.Version(2)
	assert.Equal(t, "a", v2.Author())
}

func TestUpdateRollsBackWithTransaction(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	doc := saveDoc(t, r, "user", "john")

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = doc.AddVersion(json.RawMessage(`{}`), "bob", "", t0)
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, tx, doc))
	require.NoError(t, tx.Rollback())

	found, err := r.FindByIdentity(ctx, "user", "john")
	require.NoError(t, err)
	assert.Equal(t, 1, found.VersionCount())
}

func TestListDocumentsPaginates(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	saveDoc(t, r, "user", "b")
	saveDoc(t, r, "user", "a")
	doc := saveDoc(t, r, "config", "z")
	require.NoError(t, doc.ActivateVersion(1, t0))
	require.NoError(t, r.Update(ctx, nil, doc))

	page, err := r.ListDocuments(ctx, DocumentFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "config", page[0].Type)
	require.NotNil(t, page[0].ActiveVersion)
	assert.Equal(t, 1, *page[0].ActiveVersion)
	assert.Equal(t, "a", page[1].Name)
	assert.Nil(t, page[1].ActiveVersion)

	next, err := r.ListDocuments(ctx, DocumentFilters{Limit: 2, AfterType: page[1].Type, AfterName: page[1].Name})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "b", next[0].Name)

	users, err := r.ListDocuments(ctx, DocumentFilters{Type: "user"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	s, err := r.GetDocumentSummary(ctx, "user", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, s.VersionCount)
	assert.Equal(t, 1, s.LatestVersion)
	_, err = r.GetDocumentSummary(ctx, "user", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchemaStore(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	def := domain.SchemaDefinition{
		Type:       "user",
		Schema:     json.RawMessage(`{"type":"object"}`),
		StrictMode: true,
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
	require.NoError(t, r.InsertSchema(ctx, nil, def))
	assert.ErrorIs(t, r.InsertSchema(ctx, nil, def), ErrDuplicate)

	got, ok, err := r.LookupSchema(ctx, "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.StrictMode)
	_, ok, err = r.LookupSchema(ctx, "config")
	require.NoError(t, err)
	assert.False(t, ok)

	def.StrictMode = false
	def.Description = "users"
	def.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, r.UpdateSchema(ctx, nil, def))
	got, err = r.GetSchema(ctx, "user")
	require.NoError(t, err)
	assert.False(t, got.StrictMode)
	assert.Equal(t, "users", got.Description)
	assert.True(t, got.CreatedAt.Equal(t0))

	all, err := r.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, r.DeleteSchema(ctx, nil, "user"))
	assert.ErrorIs(t, r.DeleteSchema(ctx, nil, "user"), ErrNotFound)
	assert.ErrorIs(t, r.UpdateSchema(ctx, nil, def), ErrNotFound)
}

func TestAPIKeys(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	key := domain.APIKey{ID: "k1", ActorID: "alice", Name: "ci", KeyHash: HashAPIKey("secret")}
	require.NoError(t, r.InsertAPIKey(ctx, nil, key))

	got, err := r.GetAPIKeyByHash(ctx, HashAPIKey(" secret "))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ActorID)
	assert.Equal(t, "ci", got.Name)

	keys, err := r.ListAPIKeys(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, r.DeleteAPIKey(ctx, nil, "k1"))
	_, err = r.GetAPIKeyByHash(ctx, HashAPIKey("secret"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.DeleteAPIKey(ctx, nil, "k1"), ErrNotFound)
}

func insertEvent(t *testing.T, conn *sql.DB, typ, docName string) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO events(ts,type,doc_type,doc_name,entity_kind,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		t0.Format(time.RFC3339), typ, "user", docName, "document", "alice", `{}`)
	require.NoError(t, err)
}

func TestEventQueries(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertEvent(t, r.DB, "document.created", "a")
	insertEvent(t, r.DB, "version.created", "a")
	insertEvent(t, r.DB, "document.created", "b")

	latest, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	evs, err := r.LatestEvents(ctx, EventFilters{Limit: 10, DocName: "a"})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "version.created", evs[0].Type)

	evs, err = r.LatestEvents(ctx, EventFilters{Limit: 10, Cursor: 3, Type: "document.created"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(1), evs[0].ID)

	after, err := r.EventsAfter(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(2), after[0].ID)
}

func TestFindReportsCorruptRowsAsCorruptDocument(t *testing.T) {
	ctx := context.Background()
	for _, stmt := range []string{
		`UPDATE versions SET author='  '`,
		`UPDATE versions SET created_at='yesterday'`,
		`UPDATE documents SET updated_at='later'`,
	} {
		r := newTestRepo(t)
		saveDoc(t, r, "user", "john")
		_, err := r.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)

		_, err = r.FindByIdentity(ctx, "user", "john")
		assert.ErrorIs(t, err, domain.ErrCorruptDocument, stmt)
		assert.Equal(t, domain.KindCorruptDocument, domain.KindOf(err), stmt)
	}
}
