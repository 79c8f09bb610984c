package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/domain"
)

func TestInlineDiff(t *testing.T) {
	assert.Equal(t, "gold", inlineDiff("gold", "gold"))
	assert.Equal(t, "{+new+}", inlineDiff("", "new"))
	assert.Equal(t, "[-old-]", inlineDiff("old", ""))
	assert.Equal(t, "tier: [-abc-]{+xyz+}", inlineDiff("tier: abc", "tier: xyz"))
}

func TestTextChangeOnlyForModifiedStrings(t *testing.T) {
	line, ok := textChange(domain.ChangeDetail{Type: domain.ChangeModified, Path: "name", OldValue: "ab", NewValue: "abc"})
	require.True(t, ok)
	assert.Equal(t, "ab{+c+}", line)

	_, ok = textChange(domain.ChangeDetail{Type: domain.ChangeModified, Path: "n", OldValue: 1.0, NewValue: 2.0})
	assert.False(t, ok)
	_, ok = textChange(domain.ChangeDetail{Type: domain.ChangeAdded, Path: "x", NewValue: "x"})
	assert.False(t, ok)
}

func TestParseVersion(t *testing.T) {
	n, err := parseVersion("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = parseVersion("v12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := parseVersion(raw)
		assert.Error(t, err, raw)
	}
}

func TestContentFlags(t *testing.T) {
	_, err := (&contentFlags{}).read()
	assert.Error(t, err)
	_, err = (&contentFlags{content: "{}", file: "x.json"}).read()
	assert.Error(t, err)
	raw, err := (&contentFlags{content: `{"a":1}`}).read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}
