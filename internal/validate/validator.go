// Package validate checks document content before it becomes a version.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mdversion/internal/domain"
)

const (
	DefaultMaxBytes = 1 << 20
	DefaultMaxDepth = 50
)

// Limits bound accepted content. Values at exactly the limit are accepted.
type Limits struct {
	MaxBytes int
	MaxDepth int
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	return l
}

// SchemaSource looks up the schema registered for a document type.
type SchemaSource interface {
	LookupSchema(ctx context.Context, docType string) (domain.SchemaDefinition, bool, error)
}

// Validator applies structural limits and, when a schema is registered for the type, JSON Schema rules.
type Validator struct {
	Limits  Limits
	Schemas SchemaSource
}

func New(limits Limits, schemas SchemaSource) Validator {
	return Validator{Limits: limits.withDefaults(), Schemas: schemas}
}

// ValidateRaw checks that raw is a single well-formed JSON value within the size and depth limits.
// The size limit applies to the compact serialization, which is also what is returned.
func (v Validator) ValidateRaw(raw []byte) (json.RawMessage, error) {
	limits := v.Limits.withDefaults()
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.InvalidContent("content is required")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, domain.InvalidContent("content is not valid JSON", err.Error())
	}
	compact := buf.Bytes()
	if len(compact) > limits.MaxBytes {
		return nil, domain.InvalidContent(
			fmt.Sprintf("content is %d bytes, limit is %d", len(compact), limits.MaxBytes))
	}
	if _, err := measureDepth(compact, limits.MaxDepth); err != nil {
		return nil, err
	}
	return json.RawMessage(compact), nil
}

// Depth returns the nesting depth of raw: 0 for a scalar, +1 per object or array level.
func Depth(raw []byte) (int, error) {
	return measureDepth(raw, -1)
}

func measureDepth(raw []byte, limit int) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	depth, deepest := 0, 0
	values := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, domain.InvalidContent("content is not valid JSON", err.Error())
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				if depth == 0 {
					values++
				}
				depth++
				if depth > deepest {
					deepest = depth
				}
				if limit >= 0 && depth > limit {
					return 0, domain.InvalidContent(
						fmt.Sprintf("content nesting exceeds maximum depth of %d", limit))
				}
			case '}', ']':
				depth--
			}
			continue
		}
		if depth == 0 {
			values++
		}
	}
	if values != 1 {
		return 0, domain.InvalidContent("content must be a single JSON value")
	}
	return deepest, nil
}

// ValidateSchema checks content against the schema registered for docType. Without a schema it
// accepts everything. Strict schemas turn violations into an error; others return them as warnings.
func (v Validator) ValidateSchema(ctx context.Context, docType string, content json.RawMessage) ([]string, error) {
	if v.Schemas == nil {
		return nil, nil
	}
	def, ok, err := v.Schemas.LookupSchema(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("lookup schema: %w", err)
	}
	if !ok {
		return nil, nil
	}
	problems, err := Check(def.Schema, content)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return nil, nil
	}
	if def.StrictMode {
		return nil, domain.SchemaViolation(def.Type, problems)
	}
	return problems, nil
}

// Compile parses a JSON Schema (draft 7) document. References outside the document are refused.
func Compile(schema json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	c.LoadURL = func(s string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("external reference %q is not allowed", s)
	}
	if err := c.AddResource(schemaURL, bytes.NewReader(schema)); err != nil {
		return nil, domain.InvalidSchema("schema is not valid JSON", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, domain.InvalidSchema("schema is not a valid JSON Schema", err)
	}
	return compiled, nil
}

const schemaURL = "schema.json"

// Check validates content against a JSON Schema document and returns one message per violation.
func Check(schema, content json.RawMessage) ([]string, error) {
	compiled, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, domain.InvalidContent("content is not valid JSON", err.Error())
	}
	err = compiled.Validate(value)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	return violations(ve, nil), nil
}

// violations flattens the error tree into its leaves.
func violations(ve *jsonschema.ValidationError, out []string) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return append(out, loc+": "+ve.Message)
	}
	for _, c := range ve.Causes {
		out = violations(c, out)
	}
	return out
}
