package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func content(s string) json.RawMessage { return json.RawMessage(s) }

func newDoc(t *testing.T) *MetadataDocument {
	t.Helper()
	doc, err := NewDocument("loyalty-program", "spring-promo", content(`{"discount":10}`), "alice", "", t0)
	require.NoError(t, err)
	return doc
}

func TestNewDocumentNormalizesIdentity(t *testing.T) {
	doc, err := NewDocument("  Loyalty-Program ", "SPRING-PROMO", content(`{}`), "alice", "", t0)
	require.NoError(t, err)
	assert.Equal(t, "loyalty-program", doc.Type())
	assert.Equal(t, "spring-promo", doc.Name())
	assert.Equal(t, 1, doc.VersionCount())

	v, ok := doc.Version(1)
	require.True(t, ok)
	assert.Equal(t, InitialChangeSummary, v.ChangeSummary())
	assert.Equal(t, StatePublished, v.State())
	assert.False(t, v.IsActive())
	assert.False(t, doc.HasActiveVersion())
}

func TestNewDocumentRejectsBadIdentifiers(t *testing.T) {
	cases := []struct{ typ, name string }{
		{"", "ok"},
		{"ok", "   "},
		{"has space", "ok"},
		{"ok", "double--hyphen"},
		{"-leading", "ok"},
		{"ok", "trailing-"},
		{"under_score", "ok"},
	}
	for _, tc := range cases {
		_, err := NewDocument(tc.typ, tc.name, content(`{}`), "alice", "", t0)
		require.Error(t, err, "%q/%q", tc.typ, tc.name)
		assert.True(t, errors.Is(err, ErrInvalidIdentifier), "%q/%q: %v", tc.typ, tc.name, err)
	}
}

func TestIdentifierMaxLength(t *testing.T) {
	long := make([]byte, MaxIdentifierLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NormalizeIdentifier("type", string(long))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = NormalizeIdentifier("type", string(long[:MaxIdentifierLength]))
	assert.NoError(t, err)
}

func TestNewDocumentRejectsBlankAuthor(t *testing.T) {
	_, err := NewDocument("a", "b", content(`{}`), "  ", "", t0)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestAddVersionAppendsInactive(t *testing.T) {
	doc := newDoc(t)
	later := t0.Add(time.Hour)
	v, err := doc.AddVersion(content(`{"discount":15}`), "bob", "bump", later)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number())
	assert.False(t, v.IsActive())
	assert.Equal(t, later, doc.UpdatedAt())
	assert.Equal(t, t0, doc.CreatedAt())
}

func TestActivateVersion(t *testing.T) {
	doc := newDoc(t)
	_, err := doc.AddVersion(content(`{"discount":15}`), "bob", "bump", t0)
	require.NoError(t, err)

	require.NoError(t, doc.ActivateVersion(2, t0))
	active, ok := doc.ActiveVersion()
	require.True(t, ok)
	assert.Equal(t, 2, active.Number())

	require.NoError(t, doc.ActivateVersion(1, t0))
	active, _ = doc.ActiveVersion()
	assert.Equal(t, 1, active.Number())
	v2, _ := doc.Version(2)
	assert.False(t, v2.IsActive())
}

func TestActivateVersionIsIdempotent(t *testing.T) {
	doc := newDoc(t)
	require.NoError(t, doc.ActivateVersion(1, t0))
	before := doc.Versions()
	require.NoError(t, doc.ActivateVersion(1, t0))
	assert.Equal(t, before, doc.Versions())
}

func TestActivateVersionErrors(t *testing.T) {
	doc := newDoc(t)
	for _, n := range []int{0, -1, 2} {
		err := doc.ActivateVersion(n, t0)
		assert.ErrorIs(t, err, ErrVersionNotFound, "version %d", n)
	}

	_, err := doc.AddVersion(content(`{}`), "bob", "", t0)
	require.NoError(t, err)
	_, err = doc.TransitionVersion(2, StateArchived, t0)
	require.NoError(t, err)
	err = doc.ActivateVersion(2, t0)
	assert.ErrorIs(t, err, ErrInvalidActivation)
	assert.False(t, doc.HasActiveVersion())
}

func TestTransitionArchivesActiveVersion(t *testing.T) {
	doc := newDoc(t)
	require.NoError(t, doc.ActivateVersion(1, t0))
	v, err := doc.TransitionVersion(1, StateArchived, t0)
	require.NoError(t, err)
	assert.Equal(t, StateArchived, v.State())
	assert.False(t, v.IsActive())
	assert.False(t, doc.HasActiveVersion())

	_, err = doc.TransitionVersion(1, StatePublished, t0)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindInvalidStateTransition, de.Kind)
	assert.Equal(t, StateArchived, de.From)
	assert.Equal(t, StatePublished, de.To)
	assert.Equal(t, "loyalty-program", de.Type)
}

func TestVersionsReturnsCopy(t *testing.T) {
	doc := newDoc(t)
	vs := doc.Versions()
	vs[0] = Version{}
	v, _ := doc.Version(1)
	assert.Equal(t, 1, v.Number())
}

func TestRestoreDocumentDetectsCorruption(t *testing.T) {
	v1, err := NewVersion(1, content(`{}`), "a", t0, "", StatePublished, true)
	require.NoError(t, err)
	v2, err := NewVersion(2, content(`{}`), "a", t0, "", StatePublished, true)
	require.NoError(t, err)
	v3, err := NewVersion(3, content(`{}`), "a", t0, "", StatePublished, false)
	require.NoError(t, err)

	_, err = RestoreDocument("a", "b", []Version{v1, v2}, t0, t0, 1)
	assert.ErrorIs(t, err, ErrCorruptDocument)

	_, err = RestoreDocument("a", "b", []Version{v1, v3}, t0, t0, 1)
	assert.ErrorIs(t, err, ErrCorruptDocument)

	_, err = RestoreDocument("a", "b", nil, t0, t0, 1)
	assert.ErrorIs(t, err, ErrCorruptDocument)

	doc, err := RestoreDocument("a", "b", []Version{v1}, t0, t0, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.Revision())
}

func TestVersionNumbersAreSequential(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc, err := NewDocument("a", "b", content(`{}`), "alice", "", t0)
		require.NoError(rt, err)
		appends := rapid.IntRange(0, 30).Draw(rt, "appends")
		for i := 0; i < appends; i++ {
			_, err := doc.AddVersion(content(`{"i":1}`), "alice", "", t0)
			require.NoError(rt, err)
		}
		for i, v := range doc.Versions() {
			require.Equal(rt, i+1, v.Number())
		}
		require.Equal(rt, appends+1, doc.VersionCount())
	})
}

func TestAtMostOneActiveVersion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc, err := NewDocument("a", "b", content(`{}`), "alice", "", t0)
		require.NoError(rt, err)
		total := rapid.IntRange(1, 10).Draw(rt, "total")
		for i := 1; i < total; i++ {
			_, err := doc.AddVersion(content(`{}`), "alice", "", t0)
			require.NoError(rt, err)
		}
		ops := rapid.SliceOf(rapid.IntRange(-1, total+1)).Draw(rt, "activations")
		var last int
		for _, n := range ops {
			if err := doc.ActivateVersion(n, t0); err == nil {
				last = n
			} else {
				require.ErrorIs(rt, err, ErrVersionNotFound)
			}
			active := 0
			for _, v := range doc.Versions() {
				if v.IsActive() {
					active++
				}
			}
			require.LessOrEqual(rt, active, 1)
		}
		if last > 0 {
			v, ok := doc.ActiveVersion()
			require.True(rt, ok)
			require.Equal(rt, last, v.Number())
		}
	})
}
