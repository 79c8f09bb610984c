package engine

import (
	"context"
	"errors"
	"time"

	"mdversion/internal/domain"
	"mdversion/internal/metrics"
	"mdversion/internal/repo"
)

// GetVersionHistory returns every version, oldest first.
func (e Engine) GetVersionHistory(ctx context.Context, docType, name string) ([]domain.Version, error) {
	docType, name, err := domain.NormalizeIdentity(docType, name)
	if err != nil {
		return nil, err
	}
	doc, err := e.load(ctx, docType, name)
	if err != nil {
		return nil, err
	}
	return doc.Versions(), nil
}

func (e Engine) GetSpecificVersion(ctx context.Context, docType, name string, n int) (domain.Version, error) {
	docType, name, err := domain.NormalizeIdentity(docType, name)
	if err != nil {
		return domain.Version{}, err
	}
	doc, err := e.load(ctx, docType, name)
	if err != nil {
		return domain.Version{}, err
	}
	v, ok := doc.Version(n)
	if !ok {
		return domain.Version{}, domain.VersionNotFound(docType, name, n)
	}
	return v, nil
}

// GetActiveVersion returns the active version. A missing document and a document with nothing
// active both report ok=false.
func (e Engine) GetActiveVersion(ctx context.Context, docType, name string) (v domain.Version, ok bool, err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpActiveQuery, err, time.Since(start))
	}()

	docType, name, err = domain.NormalizeIdentity(docType, name)
	if err != nil {
		return domain.Version{}, false, err
	}
	key := identityKey(docType, name)
	var gen uint64
	if e.active != nil {
		if entry, found := e.active.get(key); found {
			e.Metrics.RecordCacheLookup(true)
			return entry.version, entry.ok, nil
		}
		e.Metrics.RecordCacheLookup(false)
		gen = e.active.generation(key)
	}

	doc, err := e.Docs.FindByIdentity(ctx, docType, name)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Version{}, false, nil
	}
	if err != nil {
		return domain.Version{}, false, err
	}
	v, ok = doc.ActiveVersion()
	if e.active != nil {
		e.active.fill(key, gen, activeEntry{version: v, ok: ok})
	}
	return v, ok, nil
}

// CompareVersions diffs the content of two versions of one document.
func (e Engine) CompareVersions(ctx context.Context, docType, name string, from, to int) (cmp domain.VersionComparison, err error) {
	start := time.Now()
	defer func() {
		e.Metrics.RecordOperation(metrics.OpCompare, err, time.Since(start))
		if err == nil {
			e.Metrics.RecordComparison(cmp.HasBreakingChanges())
		}
	}()

	docType, name, err = domain.NormalizeIdentity(docType, name)
	if err != nil {
		return domain.VersionComparison{}, err
	}
	doc, err := e.load(ctx, docType, name)
	if err != nil {
		return domain.VersionComparison{}, err
	}
	fromV, ok := doc.Version(from)
	if !ok {
		return domain.VersionComparison{}, domain.VersionNotFound(docType, name, from)
	}
	toV, ok := doc.Version(to)
	if !ok {
		return domain.VersionComparison{}, domain.VersionNotFound(docType, name, to)
	}
	return e.Diff.Compare(fromV, toV)
}

// ListOptions pages through documents ordered by (type, name).
type ListOptions struct {
	Type      string
	Limit     int
	AfterType string
	AfterName string
}

func (e Engine) ListDocuments(ctx context.Context, opts ListOptions) ([]domain.DocumentSummary, error) {
	if opts.Type != "" {
		t, err := domain.NormalizeIdentifier("type", opts.Type)
		if err != nil {
			return nil, err
		}
		opts.Type = t
	}
	return e.Repo.ListDocuments(ctx, repo.DocumentFilters{
		Type:      opts.Type,
		Limit:     opts.Limit,
		AfterType: opts.AfterType,
		AfterName: opts.AfterName,
	})
}

// GetDocument returns the summary of one document.
func (e Engine) GetDocument(ctx context.Context, docType, name string) (domain.DocumentSummary, error) {
	docType, name, err := domain.NormalizeIdentity(docType, name)
	if err != nil {
		return domain.DocumentSummary{}, err
	}
	s, err := e.Repo.GetDocumentSummary(ctx, docType, name)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.DocumentSummary{}, domain.DocumentNotFound(docType, name)
	}
	return s, err
}

// LatestEvents returns the newest audit events, optionally narrowed to one document.
func (e Engine) LatestEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}

// EventsAfter returns events with ids above cursor, oldest first.
func (e Engine) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	return e.Repo.EventsAfter(ctx, limit, cursor)
}
