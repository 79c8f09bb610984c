package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InitialChangeSummary is recorded on version 1 when the caller gives none.
const InitialChangeSummary = "Initial version"

// DefaultPublishingState is the state new versions are created in.
const DefaultPublishingState = StatePublished

// MetadataDocument owns the append-only version history of one (type, name) identity.
// It is not safe for concurrent mutation; callers serialize writes per identity.
type MetadataDocument struct {
	docType   string
	name      string
	versions  []Version
	createdAt time.Time
	updatedAt time.Time
	revision  int64
}

// NewDocument creates a document whose history holds a single, inactive version 1.
func NewDocument(docType, name string, content json.RawMessage, author, changeSummary string, now time.Time) (*MetadataDocument, error) {
	t, n, err := NormalizeIdentity(docType, name)
	if err != nil {
		return nil, err
	}
	if changeSummary == "" {
		changeSummary = InitialChangeSummary
	}
	v, err := NewVersion(1, content, author, now, changeSummary, DefaultPublishingState, false)
	if err != nil {
		return nil, err
	}
	return &MetadataDocument{
		docType:   t,
		name:      n,
		versions:  []Version{v},
		createdAt: now.UTC(),
		updatedAt: now.UTC(),
	}, nil
}

// RestoreDocument rebuilds a persisted document. Broken invariants are reported as corruption.
func RestoreDocument(docType, name string, versions []Version, createdAt, updatedAt time.Time, revision int64) (*MetadataDocument, error) {
	t, n, err := NormalizeIdentity(docType, name)
	if err != nil {
		return nil, corruptDocument(docType, name, err.Error())
	}
	d := &MetadataDocument{
		docType:   t,
		name:      n,
		versions:  append([]Version(nil), versions...),
		createdAt: createdAt.UTC(),
		updatedAt: updatedAt.UTC(),
		revision:  revision,
	}
	if err := d.checkInvariants(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *MetadataDocument) checkInvariants() error {
	if len(d.versions) == 0 {
		return corruptDocument(d.docType, d.name, "document has no versions")
	}
	active := 0
	for i, v := range d.versions {
		if v.number != i+1 {
			return corruptDocument(d.docType, d.name, fmt.Sprintf("version at position %d has number %d", i+1, v.number))
		}
		if v.active {
			active++
		}
	}
	if active > 1 {
		return corruptDocument(d.docType, d.name, fmt.Sprintf("%d versions are active", active))
	}
	return nil
}

func (d *MetadataDocument) Type() string         { return d.docType }
func (d *MetadataDocument) Name() string         { return d.name }
func (d *MetadataDocument) CreatedAt() time.Time { return d.createdAt }
func (d *MetadataDocument) UpdatedAt() time.Time { return d.updatedAt }
func (d *MetadataDocument) Revision() int64      { return d.revision }
func (d *MetadataDocument) VersionCount() int    { return len(d.versions) }

// SetRevision is called by storage after a successful write.
func (d *MetadataDocument) SetRevision(rev int64) { d.revision = rev }

// Versions returns a copy of the history, oldest first.
func (d *MetadataDocument) Versions() []Version {
	return append([]Version(nil), d.versions...)
}

// Version returns version n if it exists.
func (d *MetadataDocument) Version(n int) (Version, bool) {
	if n < 1 || n > len(d.versions) {
		return Version{}, false
	}
	return d.versions[n-1], true
}

// ActiveVersion returns the currently active version, if any.
func (d *MetadataDocument) ActiveVersion() (Version, bool) {
	for _, v := range d.versions {
		if v.active {
			return v, true
		}
	}
	return Version{}, false
}

func (d *MetadataDocument) HasActiveVersion() bool {
	_, ok := d.ActiveVersion()
	return ok
}

func (d *MetadataDocument) LatestVersion() (Version, error) {
	if len(d.versions) == 0 {
		return Version{}, errors.New("document has no versions")
	}
	return d.versions[len(d.versions)-1], nil
}

// AddVersion appends version N+1. It is never active on creation.
func (d *MetadataDocument) AddVersion(content json.RawMessage, author, changeSummary string, now time.Time) (Version, error) {
	v, err := NewVersion(len(d.versions)+1, content, author, now, changeSummary, DefaultPublishingState, false)
	if err != nil {
		return Version{}, err
	}
	d.versions = append(d.versions, v)
	d.updatedAt = now.UTC()
	return v, nil
}

// ActivateVersion makes n the only active version. Activating the active version is a no-op
// apart from the timestamp.
func (d *MetadataDocument) ActivateVersion(n int, now time.Time) error {
	target, ok := d.Version(n)
	if !ok {
		return VersionNotFound(d.docType, d.name, n)
	}
	if !target.CanBeActivated() {
		return invalidActivation(d.docType, d.name, n, target.state)
	}
	next := make([]Version, len(d.versions))
	for i, v := range d.versions {
		next[i] = v.withActive(v.number == n)
	}
	d.versions = next
	d.updatedAt = now.UTC()
	return nil
}

// TransitionVersion moves version n to target. A version leaving Published loses its active flag.
func (d *MetadataDocument) TransitionVersion(n int, target PublishingState, now time.Time) (Version, error) {
	current, ok := d.Version(n)
	if !ok {
		return Version{}, VersionNotFound(d.docType, d.name, n)
	}
	moved, err := current.TransitionTo(target)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			de.Type, de.Name = d.docType, d.name
		}
		return Version{}, err
	}
	if target != StatePublished {
		moved = moved.withActive(false)
	}
	next := append([]Version(nil), d.versions...)
	next[n-1] = moved
	d.versions = next
	d.updatedAt = now.UTC()
	return moved, nil
}
