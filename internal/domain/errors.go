package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failures the versioning core reports.
type ErrorKind int

const (
	KindInvalidIdentifier ErrorKind = iota + 1
	KindInvalidContent
	KindDocumentAlreadyExists
	KindDocumentNotFound
	KindVersionNotFound
	KindInvalidVersion
	KindInvalidStateTransition
	KindInvalidActivation
	KindInvalidSchema
	KindSchemaViolation
	KindSchemaAlreadyExists
	KindSchemaNotFound
	KindConflict
	KindCorruptDocument
)

// String returns the snake_case code used in API error envelopes.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidIdentifier:
		return "invalid_identifier"
	case KindInvalidContent:
		return "invalid_content"
	case KindDocumentAlreadyExists:
		return "document_already_exists"
	case KindDocumentNotFound:
		return "document_not_found"
	case KindVersionNotFound:
		return "version_not_found"
	case KindInvalidVersion:
		return "invalid_version"
	case KindInvalidStateTransition:
		return "invalid_state_transition"
	case KindInvalidActivation:
		return "invalid_activation"
	case KindInvalidSchema:
		return "invalid_schema"
	case KindSchemaViolation:
		return "schema_violation"
	case KindSchemaAlreadyExists:
		return "schema_already_exists"
	case KindSchemaNotFound:
		return "schema_not_found"
	case KindConflict:
		return "conflict"
	case KindCorruptDocument:
		return "corrupt_document"
	default:
		return "unknown"
	}
}

// Error carries a kind plus whatever identity context was known when it was raised.
type Error struct {
	Kind    ErrorKind
	Type    string
	Name    string
	Version int
	From    PublishingState
	To      PublishingState
	Message string
	Details []string
	Err     error
}

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrInvalidIdentifier      = &Error{Kind: KindInvalidIdentifier}
	ErrInvalidContent         = &Error{Kind: KindInvalidContent}
	ErrDocumentAlreadyExists  = &Error{Kind: KindDocumentAlreadyExists}
	ErrDocumentNotFound       = &Error{Kind: KindDocumentNotFound}
	ErrVersionNotFound        = &Error{Kind: KindVersionNotFound}
	ErrInvalidVersion         = &Error{Kind: KindInvalidVersion}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInvalidActivation      = &Error{Kind: KindInvalidActivation}
	ErrInvalidSchema          = &Error{Kind: KindInvalidSchema}
	ErrSchemaViolation        = &Error{Kind: KindSchemaViolation}
	ErrSchemaAlreadyExists    = &Error{Kind: KindSchemaAlreadyExists}
	ErrSchemaNotFound         = &Error{Kind: KindSchemaNotFound}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrCorruptDocument        = &Error{Kind: KindCorruptDocument}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
	}
	if e.Type != "" || e.Name != "" {
		id := e.Type
		if e.Name != "" {
			id += "/" + e.Name
		}
		fmt.Fprintf(&b, " (%s", id)
		if e.Version > 0 {
			fmt.Fprintf(&b, " v%d", e.Version)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func invalidIdentifier(field, value string, err error) *Error {
	return &Error{
		Kind:    KindInvalidIdentifier,
		Message: fmt.Sprintf("invalid %s %q", field, value),
		Err:     err,
	}
}

// InvalidContent reports content rejected by structural or size checks.
func InvalidContent(msg string, details ...string) *Error {
	return &Error{Kind: KindInvalidContent, Message: msg, Details: details}
}

func DocumentAlreadyExists(docType, name string) *Error {
	return &Error{Kind: KindDocumentAlreadyExists, Type: docType, Name: name, Message: "document already exists"}
}

func DocumentNotFound(docType, name string) *Error {
	return &Error{Kind: KindDocumentNotFound, Type: docType, Name: name, Message: "document not found"}
}

func VersionNotFound(docType, name string, version int) *Error {
	return &Error{Kind: KindVersionNotFound, Type: docType, Name: name, Version: version, Message: "version not found"}
}

func invalidVersion(msg string) *Error {
	return &Error{Kind: KindInvalidVersion, Message: msg}
}

func invalidStateTransition(version int, from, to PublishingState) *Error {
	return &Error{
		Kind:    KindInvalidStateTransition,
		Version: version,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func invalidActivation(docType, name string, version int, state PublishingState) *Error {
	return &Error{
		Kind:    KindInvalidActivation,
		Type:    docType,
		Name:    name,
		Version: version,
		From:    state,
		Message: fmt.Sprintf("only %s versions can be activated, version is %s", StatePublished, state),
	}
}

func InvalidSchema(msg string, err error) *Error {
	return &Error{Kind: KindInvalidSchema, Message: msg, Err: err}
}

func SchemaViolation(docType string, details []string) *Error {
	return &Error{Kind: KindSchemaViolation, Type: docType, Message: "content does not match schema", Details: details}
}

func SchemaAlreadyExists(docType string) *Error {
	return &Error{Kind: KindSchemaAlreadyExists, Type: docType, Message: "schema already exists"}
}

func SchemaNotFound(docType string) *Error {
	return &Error{Kind: KindSchemaNotFound, Type: docType, Message: "schema not found"}
}

func Conflict(docType, name string) *Error {
	return &Error{Kind: KindConflict, Type: docType, Name: name, Message: "document was modified concurrently"}
}

func corruptDocument(docType, name, msg string) *Error {
	return &Error{Kind: KindCorruptDocument, Type: docType, Name: name, Message: msg}
}

// CorruptDocument reports stored state for docType/name that cannot be turned back into a document.
func CorruptDocument(docType, name string, version int, err error) *Error {
	return &Error{Kind: KindCorruptDocument, Type: docType, Name: name, Version: version, Message: "corrupt document", Err: err}
}
