// Package queries builds the SQL statements the console sends to a project
// database.
package queries

import (
	"errors"
	"fmt"
	"strings"

	"github.com/willibrandon/studio/internal/pgformat"
)

// ErrTableNameRequired is returned when a table statement has no name.
var ErrTableNameRequired = errors.New("table name is required")

// CreateTableSQL creates an empty table with a bigint identity primary key.
// An empty schema means public.
func CreateTableSQL(schema, name string) (string, error) {
	schema, name, err := tableName(schema, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"create table %s (\n  id bigint generated by default as identity primary key\n);",
		pgformat.Ident(schema, name),
	), nil
}

// RelationIDSQL resolves a table name to its relation id. The single row has
// a NULL relation_id when no such relation exists.
func RelationIDSQL(schema, name string) (string, error) {
	schema, name, err := tableName(schema, name)
	if err != nil {
		return "", err
	}
	lit, err := pgformat.Literal(pgformat.Ident(schema, name))
	if err != nil {
		return "", fmt.Errorf("quote relation: %w", err)
	}
	return fmt.Sprintf("select to_regclass(%s)::oid as relation_id;", lit), nil
}

func tableName(schema, name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrTableNameRequired
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if strings.ContainsRune(schema+name, 0) {
		return "", "", pgformat.ErrNulByte
	}
	return schema, name, nil
}
