package transform

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"hubstage/pkg/errors"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// checkIdent rejects anything that would not render as a bare SQL identifier.
func checkIdent(field, value string) error {
	if !identPattern.MatchString(value) {
		return errors.IdentifierError(field, value)
	}
	return nil
}

// checkQualified accepts dot-qualified names such as "raw.hubspot".
func checkQualified(field, value string) error {
	if value == "" {
		return nil
	}
	for _, part := range strings.Split(value, ".") {
		if !identPattern.MatchString(part) {
			return errors.IdentifierError(field, value)
		}
	}
	return nil
}

// Qualify prefixes name with schema when one is set.
func Qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// folder matches identifiers case-insensitively. A cases.Caser is stateful,
// so each call site gets its own.
type folder struct {
	c cases.Caser
}

func newFolder() *folder {
	return &folder{c: cases.Fold()}
}

func (f *folder) key(s string) string {
	return f.c.String(s)
}
