package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/willibrandon/studio/internal/db/models"
)

func TestPrivilegeTree(t *testing.T) {
	color.NoColor = true

	snapshot := []models.RelationPrivileges{
		{
			RelationID: 16384,
			Schema:     "public",
			Name:       "todos",
			Privileges: []models.PrivilegeGrant{
				{Grantee: "anon", PrivilegeType: "SELECT"},
				{Grantee: "postgres", PrivilegeType: "INSERT", IsGrantable: true},
				{Grantee: "anon", PrivilegeType: "UPDATE"},
			},
		},
		{RelationID: 16390, Schema: "private", Name: "secrets", Privileges: []models.PrivilegeGrant{}},
	}

	out := privilegeTree("default", snapshot)

	assert.Contains(t, out, "default")
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "todos (16384) [api]")
	assert.Contains(t, out, "anon: SELECT, UPDATE")
	assert.Contains(t, out, "postgres: INSERT*")
	assert.Contains(t, out, "secrets (16390)")
	assert.NotContains(t, out, "secrets (16390) [api]")
}

func TestPrivilegeTree_Empty(t *testing.T) {
	color.NoColor = true
	assert.Contains(t, privilegeTree("default", nil), "no relations")
}

func TestRender_UnknownFormat(t *testing.T) {
	outputFormat = "xml"
	defer func() { outputFormat = "text" }()

	called := false
	err := render(struct{}{}, func() { called = true })
	assert.ErrorIs(t, err, errOutputFormat)
	assert.False(t, called)
}
