package domain

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxIdentifierLength = 100

var (
	identifierPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	schemaTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

func identifierRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, MaxIdentifierLength),
		validation.Match(identifierPattern).Error("must be kebab-case (lowercase letters, digits, single hyphens)"),
	}
}

// NormalizeIdentifier trims and lowercases raw, then checks it is kebab-case.
func NormalizeIdentifier(field, raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if err := validation.Validate(v, identifierRules()...); err != nil {
		return "", invalidIdentifier(field, raw, err)
	}
	return v, nil
}

// NormalizeIdentity normalizes a (type, name) pair.
func NormalizeIdentity(docType, name string) (string, string, error) {
	t, err := NormalizeIdentifier("type", docType)
	if err != nil {
		return "", "", err
	}
	n, err := NormalizeIdentifier("name", name)
	if err != nil {
		return "", "", err
	}
	return t, n, nil
}
