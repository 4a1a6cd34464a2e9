// Package pgformat quotes values and identifiers for embedding in generated
// PostgreSQL statements.
package pgformat

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNulByte is returned for strings containing a NUL byte, which PostgreSQL
// text cannot represent.
var ErrNulByte = errors.New("string contains NUL byte")

// Literal quotes s as a SQL string literal. Single quotes are doubled; a
// string containing backslashes is emitted as an escape string (E'...') with
// every backslash doubled so the literal reads the same with or without
// standard_conforming_strings.
func Literal(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", ErrNulByte
	}

	quoted := strings.ReplaceAll(s, "'", "''")
	if strings.Contains(quoted, `\`) {
		quoted = strings.ReplaceAll(quoted, `\`, `\\`)
		return "E'" + quoted + "'", nil
	}
	return "'" + quoted + "'", nil
}

// MustLiteral is Literal for compile-time constants.
func MustLiteral(s string) string {
	lit, err := Literal(s)
	if err != nil {
		panic(err)
	}
	return lit
}

// Ident quotes a possibly qualified identifier, one part per argument.
func Ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}
