package validate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdversion/internal/domain"
)

func nested(depth int) string {
	return strings.Repeat(`{"a":`, depth-1) + `{}` + strings.Repeat(`}`, depth-1)
}

func TestDepth(t *testing.T) {
	cases := map[string]int{
		`1`:                 0,
		`"x"`:               0,
		`{}`:                1,
		`[]`:                1,
		`{"a":[1,{"b":2}]}`: 3,
		nested(7):           7,
	}
	for raw, want := range cases {
		got, err := Depth([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestValidateRawDepthBoundary(t *testing.T) {
	v := New(Limits{}, nil)
	_, err := v.ValidateRaw([]byte(nested(DefaultMaxDepth)))
	assert.NoError(t, err)

	_, err = v.ValidateRaw([]byte(nested(DefaultMaxDepth + 1)))
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
}

func TestValidateRawSizeBoundary(t *testing.T) {
	v := New(Limits{MaxBytes: 64}, nil)
	exact := `{"k":"` + strings.Repeat("x", 64-len(`{"k":""}`)) + `"}`
	require.Len(t, exact, 64)
	_, err := v.ValidateRaw([]byte(exact))
	assert.NoError(t, err)

	over := `{"k":"` + strings.Repeat("x", 65-len(`{"k":""}`)) + `"}`
	_, err = v.ValidateRaw([]byte(over))
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
}

func TestValidateRawDefaultSizeBoundary(t *testing.T) {
	v := New(Limits{}, nil)
	pad := DefaultMaxBytes - len(`""`)
	_, err := v.ValidateRaw([]byte(`"` + strings.Repeat("a", pad) + `"`))
	assert.NoError(t, err)
	_, err = v.ValidateRaw([]byte(`"` + strings.Repeat("a", pad+1) + `"`))
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
}

func TestValidateRawRejectsMalformed(t *testing.T) {
	v := New(Limits{}, nil)
	for _, raw := range []string{"", "   ", `{`, `{"a":1,}`, `{} {}`, `nope`} {
		_, err := v.ValidateRaw([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrInvalidContent, "%q", raw)
	}
}

func TestValidateRawCompacts(t *testing.T) {
	v := New(Limits{}, nil)
	out, err := v.ValidateRaw([]byte("{\n  \"a\": [1, 2]\n}"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, string(out))
}

type staticSchemas map[string]domain.SchemaDefinition

func (s staticSchemas) LookupSchema(_ context.Context, docType string) (domain.SchemaDefinition, bool, error) {
	def, ok := s[docType]
	return def, ok, nil
}

const promoSchema = `{
	"type": "object",
	"required": ["discount"],
	"properties": {
		"discount": {"type": "integer", "minimum": 0, "maximum": 100},
		"tiers": {"type": "array", "items": {"type": "string"}}
	}
}`

func TestValidateSchema(t *testing.T) {
	schemas := staticSchemas{
		"strict-promo": {Type: "strict-promo", Schema: json.RawMessage(promoSchema), StrictMode: true},
		"loose-promo":  {Type: "loose-promo", Schema: json.RawMessage(promoSchema)},
	}
	v := New(Limits{}, schemas)
	ctx := context.Background()

	warnings, err := v.ValidateSchema(ctx, "strict-promo", json.RawMessage(`{"discount":10,"tiers":["gold"]}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	_, err = v.ValidateSchema(ctx, "strict-promo", json.RawMessage(`{"discount":150}`))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindSchemaViolation, de.Kind)
	assert.NotEmpty(t, de.Details)

	warnings, err = v.ValidateSchema(ctx, "loose-promo", json.RawMessage(`{"tiers":[1]}`))
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	warnings, err = v.ValidateSchema(ctx, "no-schema", json.RawMessage(`[1,2,3]`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateRawMeasuresCompactForm(t *testing.T) {
	v := New(Limits{MaxBytes: 16}, nil)
	pretty := "{\n    \"a\":   1,\n    \"b\":   2\n}"
	require.Greater(t, len(pretty), 16)
	out, err := v.ValidateRaw([]byte(pretty))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestCompileRejectsInvalidSchemas(t *testing.T) {
	for _, raw := range []string{
		`{"type":"object",`,
		`{"type":"object","properties":{"a":{"type":5}}}`,
		`{"type":"object","properties":{"a":{"minimum":"zero"}}}`,
		`{"type":"object","properties":{"a":{"$ref":"#/definitions/missing"}}}`,
		`{"type":"object","properties":{"a":{"$ref":"https://example.com/s.json"}}}`,
	} {
		_, err := Compile(json.RawMessage(raw))
		assert.ErrorIs(t, err, domain.ErrInvalidSchema, raw)
	}
}

func TestCheckFollowsDefinitions(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"definitions": {"label": {"type": "string"}},
		"properties": {"a": {"$ref": "#/definitions/label"}}
	}`)
	problems, err := Check(schema, json.RawMessage(`{"a":5}`))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "/a")

	problems, err = Check(schema, json.RawMessage(`{"a":"ok"}`))
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCheckTypeUnion(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"a":{"type":["string","null"]}}}`)
	for _, ok := range []string{`{"a":"x"}`, `{"a":null}`, `{}`} {
		problems, err := Check(schema, json.RawMessage(ok))
		require.NoError(t, err)
		assert.Empty(t, problems, ok)
	}
	problems, err := Check(schema, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.NotEmpty(t, problems)
}

func TestCheckReportsEveryViolation(t *testing.T) {
	problems, err := Check(json.RawMessage(promoSchema), json.RawMessage(`{"discount":150,"tiers":[1,"x",2]}`))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(problems), 2)
	joined := strings.Join(problems, "\n")
	assert.Contains(t, joined, "/discount")
	assert.Contains(t, joined, "/tiers/0")
}
