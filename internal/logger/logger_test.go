package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})
	l.LogRequest("GET", "/v1/health", 200, time.Millisecond, "c1")
	l.LogRequest("POST", "/v1/metadata", 409, time.Millisecond, "c2")
	l.LogRequest("GET", "/v1/metadata", 500, time.Millisecond, "c3")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "c2", lines[1]["correlation_id"])
	assert.Equal(t, "mdversion", lines[0]["service"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf}).Component("engine")
	l.LogOperation("create_version", "user", "john", time.Millisecond, nil)
	l.LogOperation("create_version", "user", "john", time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "john", lines[0]["doc_name"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", ParseLevel("verbose").String())
	assert.Equal(t, "debug", ParseLevel(" DEBUG ").String())
}
