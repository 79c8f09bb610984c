package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"mdversion/internal/config"
	"mdversion/internal/diff"
	"mdversion/internal/domain"
	"mdversion/internal/events"
	"mdversion/internal/logger"
	"mdversion/internal/metrics"
	"mdversion/internal/repo"
	"mdversion/internal/validate"
)

// maxAttempts bounds how often a mutation is replayed after a revision conflict.
const maxAttempts = 3

// Repository persists MetadataDocument aggregates.
type Repository interface {
	FindByIdentity(ctx context.Context, docType, name string) (*domain.MetadataDocument, error)
	ExistsByIdentity(ctx context.Context, docType, name string) (bool, error)
	Save(ctx context.Context, tx *sql.Tx, doc *domain.MetadataDocument) error
	Update(ctx context.Context, tx *sql.Tx, doc *domain.MetadataDocument) error
}

// ContentValidator checks raw content before it becomes a version.
type ContentValidator interface {
	ValidateRaw(raw []byte) (json.RawMessage, error)
	ValidateSchema(ctx context.Context, docType string, content json.RawMessage) ([]string, error)
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Docs      Repository
	Events    events.Writer
	Config    *config.Config
	Validator ContentValidator
	Diff      diff.Engine
	Metrics   *metrics.Metrics
	Log       *logger.Logger
	Now       func() time.Time

	active *activeCache
	locks  *identityLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	ttl := time.Duration(cfg.Cache.ActiveTTLSeconds) * time.Second
	e := Engine{
		DB:     db,
		Repo:   r,
		Docs:   r,
		Events: events.Writer{DB: db},
		Config: cfg,
		Validator: validate.New(validate.Limits{
			MaxBytes: cfg.Limits.MaxContentBytes,
			MaxDepth: cfg.Limits.MaxDepth,
		}, r),
		Log:   logger.Nop(),
		Now:   time.Now,
		locks: newIdentityLocks(),
	}
	if ttl > 0 {
		e.active = newActiveCache(ttl)
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func identityKey(docType, name string) string {
	return docType + "/" + name
}

func versionEntityID(docType, name string, n int) string {
	return identityKey(docType, name) + "@" + strconv.Itoa(n)
}

// identityLocks serializes mutations per document identity. Entries are dropped once unused.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: map[string]*identityLock{}}
}

func (l *identityLocks) lock(key string) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	il, ok := l.locks[key]
	if !ok {
		il = &identityLock{}
		l.locks[key] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// VersionInput is the payload for creating a version.
type VersionInput struct {
	Type          string
	Name          string
	Content       []byte
	Author        string
	ChangeSummary string
}

// VersionResult is a created version plus any non-strict schema warnings.
type VersionResult struct {
	Version  domain.Version
	Warnings []string
}

// checkContent runs structural then schema validation and returns the compacted content.
func (e Engine) checkContent(ctx context.Context, docType string, raw []byte) (json.RawMessage, []string, error) {
	content, err := e.Validator.ValidateRaw(raw)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	warnings, err := e.Validator.ValidateSchema(ctx, docType, content)
	e.Metrics.RecordOperation(metrics.OpSchemaValidation, err, time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	return content, warnings, nil
}

// CreateFirstVersion creates a new document holding version 1.
func (e Engine) CreateFirstVersion(ctx context.Context, in VersionInput) (res VersionResult, err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpCreateDocument, err, time.Since(start))
		e.log().LogOperation(metrics.OpCreateDocument, in.Type, in.Name, time.Since(start), err)
	}()

	docType, name, err := domain.NormalizeIdentity(in.Type, in.Name)
	if err != nil {
		return VersionResult{}, err
	}
	content, warnings, err := e.checkContent(ctx, docType, in.Content)
	if err != nil {
		return VersionResult{}, err
	}
	doc, err := domain.NewDocument(docType, name, content, in.Author, in.ChangeSummary, e.now())
	if err != nil {
		return VersionResult{}, err
	}

	unlock := e.locks.lock(identityKey(docType, name))
	defer unlock()

	exists, err := e.Docs.ExistsByIdentity(ctx, docType, name)
	if err != nil {
		return VersionResult{}, err
	}
	if exists {
		return VersionResult{}, domain.DocumentAlreadyExists(docType, name)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return VersionResult{}, err
	}
	defer tx.Rollback()
	if err := e.Docs.Save(ctx, tx, doc); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return VersionResult{}, domain.DocumentAlreadyExists(docType, name)
		}
		return VersionResult{}, err
	}
	v, _ := doc.Version(1)
	if err := e.Events.Append(ctx, tx, events.Record{
		Type:       events.DocumentCreated,
		DocType:    docType,
		DocName:    name,
		EntityKind: "document",
		EntityID:   identityKey(docType, name),
		ActorID:    v.Author(),
		Payload: events.EventPayload{
			"version_number": 1,
			"change_summary": v.ChangeSummary(),
		},
	}); err != nil {
		return VersionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return VersionResult{}, err
	}
	e.invalidate(docType, name)
	return VersionResult{Version: v, Warnings: warnings}, nil
}

// mutate loads the document, applies fn and persists it with the returned events in one
// transaction. A stale revision replays the whole sequence.
func (e Engine) mutate(ctx context.Context, docType, name string, fn func(doc *domain.MetadataDocument) ([]events.Record, error)) (*domain.MetadataDocument, error) {
	unlock := e.locks.lock(identityKey(docType, name))
	defer unlock()

	for attempt := 1; ; attempt++ {
		doc, err := e.load(ctx, docType, name)
		if err != nil {
			return nil, err
		}
		recs, err := fn(doc)
		if err != nil {
			return nil, err
		}
		err = e.persist(ctx, doc, recs)
		if errors.Is(err, repo.ErrConflict) {
			e.log().Warn().Str("doc_type", docType).Str("doc_name", name).Int("attempt", attempt).Msg("revision conflict")
			if attempt < maxAttempts {
				continue
			}
			return nil, domain.Conflict(docType, name)
		}
		if err != nil {
			return nil, err
		}
		e.invalidate(docType, name)
		return doc, nil
	}
}

func (e Engine) persist(ctx context.Context, doc *domain.MetadataDocument, recs []events.Record) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Docs.Update(ctx, tx, doc); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := e.Events.Append(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e Engine) load(ctx context.Context, docType, name string) (*domain.MetadataDocument, error) {
	doc, err := e.Docs.FindByIdentity(ctx, docType, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, domain.DocumentNotFound(docType, name)
	}
	if errors.Is(err, domain.ErrCorruptDocument) {
		e.log().Error().Err(err).Str("doc_type", docType).Str("doc_name", name).Msg("corrupt document")
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateNewVersion appends version N+1 to an existing document. The new version is not activated.
func (e Engine) CreateNewVersion(ctx context.Context, in VersionInput) (res VersionResult, err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpCreateVersion, err, time.Since(start))
		e.log().LogOperation(metrics.OpCreateVersion, in.Type, in.Name, time.Since(start), err)
	}()

	docType, name, err := domain.NormalizeIdentity(in.Type, in.Name)
	if err != nil {
		return VersionResult{}, err
	}
	content, warnings, err := e.checkContent(ctx, docType, in.Content)
	if err != nil {
		return VersionResult{}, err
	}
	var created domain.Version
	_, err = e.mutate(ctx, docType, name, func(doc *domain.MetadataDocument) ([]events.Record, error) {
		v, err := doc.AddVersion(content, in.Author, in.ChangeSummary, e.now())
		if err != nil {
			return nil, err
		}
		created = v
		return []events.Record{{
			Type:       events.VersionCreated,
			DocType:    docType,
			DocName:    name,
			EntityKind: "version",
			EntityID:   versionEntityID(docType, name, v.Number()),
			ActorID:    v.Author(),
			Payload: events.EventPayload{
				"version_number": v.Number(),
				"change_summary": v.ChangeSummary(),
			},
		}}, nil
	})
	if err != nil {
		return VersionResult{}, err
	}
	return VersionResult{Version: created, Warnings: warnings}, nil
}

// ActivateVersion makes version n the single active version of the document.
func (e Engine) ActivateVersion(ctx context.Context, docType, name string, n int, actorID string) (err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpActivateVersion, err, time.Since(start))
		e.log().LogOperation(metrics.OpActivateVersion, docType, name, time.Since(start), err)
	}()

	docType, name, err = domain.NormalizeIdentity(docType, name)
	if err != nil {
		return err
	}
	_, err = e.mutate(ctx, docType, name, func(doc *domain.MetadataDocument) ([]events.Record, error) {
		previous := 0
		if v, ok := doc.ActiveVersion(); ok {
			previous = v.Number()
		}
		if err := doc.ActivateVersion(n, e.now()); err != nil {
			return nil, err
		}
		return []events.Record{{
			Type:       events.VersionActivated,
			DocType:    docType,
			DocName:    name,
			EntityKind: "version",
			EntityID:   versionEntityID(docType, name, n),
			ActorID:    actorID,
			Payload: events.EventPayload{
				"version_number":  n,
				"previous_active": previous,
			},
		}}, nil
	})
	return err
}

// TransitionVersion moves version n through its publishing lifecycle.
func (e Engine) TransitionVersion(ctx context.Context, docType, name string, n int, target domain.PublishingState, actorID string) (v domain.Version, err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpTransition, err, time.Since(start))
		e.log().LogOperation(metrics.OpTransition, docType, name, time.Since(start), err)
	}()

	docType, name, err = domain.NormalizeIdentity(docType, name)
	if err != nil {
		return domain.Version{}, err
	}
	_, err = e.mutate(ctx, docType, name, func(doc *domain.MetadataDocument) ([]events.Record, error) {
		before, ok := doc.Version(n)
		if !ok {
			return nil, domain.VersionNotFound(docType, name, n)
		}
		moved, err := doc.TransitionVersion(n, target, e.now())
		if err != nil {
			return nil, err
		}
		v = moved
		return []events.Record{{
			Type:       events.VersionStateChanged,
			DocType:    docType,
			DocName:    name,
			EntityKind: "version",
			EntityID:   versionEntityID(docType, name, n),
			ActorID:    actorID,
			Payload: events.EventPayload{
				"version_number": n,
				"from":           before.State().String(),
				"to":             moved.State().String(),
				"was_active":     before.IsActive(),
				"remains_active": moved.IsActive(),
			},
		}}, nil
	})
	if err != nil {
		return domain.Version{}, err
	}
	return v, nil
}

func (e Engine) invalidate(docType, name string) {
	if e.active != nil {
		e.active.invalidate(identityKey(docType, name))
	}
}
