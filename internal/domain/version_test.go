package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishingStateTransitions(t *testing.T) {
	legal := map[PublishingState][]PublishingState{
		StateDraft:     {StateApproved},
		StateApproved:  {StatePublished, StateDraft},
		StatePublished: {StateArchived},
		StateArchived:  nil,
	}
	for _, from := range AllStates {
		for _, to := range AllStates {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestParsePublishingState(t *testing.T) {
	s, err := ParsePublishingState(" published ")
	require.NoError(t, err)
	assert.Equal(t, StatePublished, s)
	_, err = ParsePublishingState("live")
	assert.Error(t, err)
}

func TestNewVersionValidation(t *testing.T) {
	_, err := NewVersion(0, content(`{}`), "a", t0, "", StateDraft, false)
	assert.ErrorIs(t, err, ErrInvalidVersion)
	_, err = NewVersion(1, nil, "a", t0, "", StateDraft, false)
	assert.ErrorIs(t, err, ErrInvalidVersion)
	_, err = NewVersion(1, content(`{}`), "a", t0, "", PublishingState(99), false)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestVersionTransitionReturnsCopy(t *testing.T) {
	v, err := NewVersion(1, content(`{}`), "a", t0, "", StateDraft, false)
	require.NoError(t, err)
	approved, err := v.TransitionTo(StateApproved)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, v.State())
	assert.Equal(t, StateApproved, approved.State())
	assert.False(t, approved.CanBeActivated())

	_, err = v.TransitionTo(StatePublished)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestVersionContentIsCopied(t *testing.T) {
	raw := content(`{"a":1}`)
	v, err := NewVersion(1, raw, "a", t0, "", StateDraft, false)
	require.NoError(t, err)
	raw[2] = 'b'
	got := v.Content()
	assert.JSONEq(t, `{"a":1}`, string(got))
	got[2] = 'c'
	assert.JSONEq(t, `{"a":1}`, string(v.Content()))
}

func TestVersionJSON(t *testing.T) {
	v, err := NewVersion(3, content(`{"a":[1,2]}`), "carol", t0, "tweak", StateApproved, false)
	require.NoError(t, err)
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version_number": 3,
		"content": {"a":[1,2]},
		"author": "carol",
		"created_at": "2024-01-01T00:00:00Z",
		"change_summary": "tweak",
		"publishing_state": "APPROVED",
		"is_active": false
	}`, string(data))

	var back Version
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 3, back.Number())
	assert.Equal(t, StateApproved, back.State())
}

func TestErrorKindsMatch(t *testing.T) {
	err := VersionNotFound("a", "b", 4)
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.NotErrorIs(t, err, ErrDocumentNotFound)
	assert.Equal(t, KindVersionNotFound, KindOf(err))
	assert.Equal(t, "version not found (a/b v4)", err.Error())
	assert.Equal(t, ErrorKind(0), KindOf(assert.AnError))
}

func TestSchemaDefinitionValidate(t *testing.T) {
	ok := SchemaDefinition{Type: "Loyalty-Program", Schema: content(`{"type":"object"}`)}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "loyalty-program", ok.Type)

	bad := []SchemaDefinition{
		{Type: "1abc", Schema: content(`{"type":"object"}`)},
		{Type: "abc", Schema: content(`[]`)},
		{Type: "abc", Schema: content(`{"type":"array"}`)},
		{Type: "abc"},
	}
	for _, s := range bad {
		assert.ErrorIs(t, s.Validate(), ErrInvalidSchema, "%+v", s)
	}
}
