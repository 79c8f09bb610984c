package domain

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SchemaDefinition is the JSON Schema content of a document type must satisfy.
type SchemaDefinition struct {
	Type        string          `json:"type"`
	Schema      json.RawMessage `json:"schema"`
	Description string          `json:"description,omitempty"`
	StrictMode  bool            `json:"strict_mode"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the type name and that the schema root describes an object.
func (s *SchemaDefinition) Validate() error {
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	err := validation.ValidateStruct(s,
		validation.Field(&s.Type,
			validation.Required,
			validation.Length(1, MaxIdentifierLength),
			validation.Match(schemaTypePattern).Error("must start with a lowercase letter and contain only lowercase letters, digits and hyphens"),
		),
		validation.Field(&s.Schema, validation.Required),
		validation.Field(&s.Description, validation.Length(0, 1000)),
	)
	if err != nil {
		return InvalidSchema("invalid schema definition", err)
	}
	var root map[string]any
	if err := json.Unmarshal(s.Schema, &root); err != nil {
		return InvalidSchema("schema must be a JSON object", err)
	}
	if t, _ := root["type"].(string); t != "object" {
		return InvalidSchema(`schema root must declare "type": "object"`, nil)
	}
	return nil
}
